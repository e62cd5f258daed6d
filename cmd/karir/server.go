package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/upi-karir/karir/engine/domain"
	"github.com/upi-karir/karir/engine/ingest"
	"github.com/upi-karir/karir/engine/rag"
	"github.com/upi-karir/karir/pkg/metrics"
	"github.com/upi-karir/karir/pkg/mid"
)

const (
	msgQuestionRequired = "Pertanyaan wajib diisi."
	msgAskFailed        = "Gagal memproses pertanyaan."
	msgBadBody          = "Body permintaan tidak valid."
)

var validate = validator.New()

// answerer is the part of *rag.Service the HTTP layer needs.
type answerer interface {
	Answer(ctx context.Context, question string) (*rag.Answer, error)
}

// requestPublisher queues an ingestion request. Nil when no bus is configured.
type requestPublisher func(ctx context.Context, req ingest.Request) error

type routes struct {
	ask        answerer
	publish    requestPublisher
	met        *metrics.Registry
	log        *slog.Logger
	corsOrigin string
}

// AskRequest is the JSON body for POST /rag/ask.
type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

// AskResponse is the JSON body of a successful answer.
type AskResponse struct {
	Success bool `json:"success"`
	*rag.Answer
}

// IngestRequest is the JSON body for POST /ingest.
type IngestRequest struct {
	Type  string `json:"type" validate:"required"`
	Fresh bool   `json:"fresh"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mid.Recover(rt.log), mid.Logger(rt.log), mid.CORS(rt.corsOrigin), mid.OTel("karir"))

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", rt.met.Handler())
	r.With(middleware.Timeout(2*time.Minute)).Post("/rag/ask", handleAsk(rt.ask, rt.log))
	if rt.publish != nil {
		r.Post("/ingest", handleIngest(rt.publish, rt.log))
	}
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleAsk(svc answerer, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgBadBody)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, msgQuestionRequired)
			return
		}

		ans, err := svc.Answer(r.Context(), req.Question)
		if err != nil {
			status, msg := askError(err)
			if status >= http.StatusInternalServerError {
				log.Error("ask failed", "error", err)
			}
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, AskResponse{Success: true, Answer: ans})
	}
}

// askError maps a pipeline error to a status and a user-facing message.
func askError(err error) (int, string) {
	var uf *domain.UserFacingError
	switch {
	case errors.Is(err, domain.ErrInvalidQuestion):
		return http.StatusBadRequest, msgQuestionRequired
	case errors.As(err, &uf):
		return http.StatusUnprocessableEntity, uf.Message
	default:
		return http.StatusInternalServerError, msgAskFailed
	}
}

func handleIngest(publish requestPublisher, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgBadBody)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "type is required")
			return
		}
		sel, err := ingest.ParseSelector(req.Type)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := publish(r.Context(), ingest.Request{Type: sel.String(), Fresh: req.Fresh}); err != nil {
			log.Error("ingest publish failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "ingestion queue unavailable")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "type": sel.String(), "fresh": req.Fresh})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Message: msg})
}
