// Package jurusan fetches the university study-program taxonomy used as
// the jurusan collection.
package jurusan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/upi-karir/karir/engine/facts"
	"github.com/upi-karir/karir/engine/onet"
	"github.com/upi-karir/karir/pkg/fn"
)

// ErrFeed is returned when the feed answers with success=false.
var ErrFeed = errors.New("jurusan: feed reported failure")

// Program is one item of the feed.
type Program struct {
	Code    string `json:"kodepst"`
	Name    string `json:"namapst"`
	Faculty string `json:"fakultas"`
	Level   string `json:"jenjang"`
}

// Row adapts the program to the row shape the jurusan emitter reads.
func (p Program) Row() onet.Row {
	return onet.NewRow(map[string]string{
		facts.ColProgramCode:    p.Code,
		facts.ColProgramName:    p.Name,
		facts.ColProgramFaculty: p.Faculty,
		facts.ColProgramLevel:   p.Level,
	})
}

type envelope struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    []Program `json:"data"`
}

// Client reads the feed with a bearer token.
type Client struct {
	url    string
	token  string
	client *http.Client
	retry  fn.RetryOpts
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.client = hc } }

// WithRetry replaces the retry policy.
func WithRetry(opts fn.RetryOpts) Option { return func(c *Client) { c.retry = opts } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient creates a feed client.
func NewClient(url, token string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
		retry:  fn.DefaultRetry,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch downloads the full program list. Network errors and 5xx answers
// are retried; client errors and success=false are not.
func (c *Client) Fetch(ctx context.Context) ([]Program, error) {
	attempt := 0
	return fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[[]Program] {
		attempt++
		programs, err := c.fetch(ctx)
		if err != nil {
			c.logger.Warn("jurusan fetch failed", "attempt", attempt, "err", err)
			return fn.Err[[]Program](err)
		}
		return fn.Ok(programs)
	}).Unwrap()
}

func (c *Client) fetch(ctx context.Context) ([]Program, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("jurusan: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jurusan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("jurusan: status %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, fn.Permanent(err)
		}
		return nil, err
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("jurusan: decode: %w", err)
	}
	if !env.Success {
		if env.Message != "" {
			return nil, fn.Permanent(fmt.Errorf("%w: %s", ErrFeed, env.Message))
		}
		return nil, fn.Permanent(ErrFeed)
	}
	return env.Data, nil
}
