// Command karir builds the career knowledge base from O*NET and the UPI
// study-program feed, and answers questions against it.
//
//	karir ingest --type all --fresh
//	karir ask "Apa saja tugas seorang perawat?"
//	karir serve --refresh-jurusan
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/upi-karir/karir/engine/domain"
	"github.com/upi-karir/karir/engine/ingest"
	"github.com/upi-karir/karir/pkg/config"
	"github.com/upi-karir/karir/pkg/natsutil"
	"github.com/urfave/cli/v2"
)

// Exit codes.
const (
	exitFailure       = 1
	exitUnprocessable = 2
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "karir:", err)
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		os.Exit(exitFailure)
	}
}

func newApp(out io.Writer) *cli.App {
	var st *stack
	return &cli.App{
		Name:      "karir",
		Usage:     "Career knowledge base over O*NET and UPI study programs",
		Writer:    out,
		ErrWriter: os.Stderr,
		// Exit codes are handled in main.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"KARIR_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the log level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Args().Len() == 0 || c.Args().First() == "help" {
				return nil
			}
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if lvl := c.String("log-level"); lvl != "" {
				cfg.LogLevel = strings.ToLower(lvl)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger := newLogger(cfg, c.Args().First() == "serve")
			slog.SetDefault(logger)
			st = newStack(cfg, logger)
			return nil
		},
		After: func(*cli.Context) error {
			if st == nil {
				return nil
			}
			return st.Close()
		},
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "Embed O*NET and jurusan facts into the vector store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Source type to ingest: all, or one collection name",
						Value: "all",
					},
					&cli.BoolFlag{
						Name:  "fresh",
						Usage: "Drop and recreate the selected collections first",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Source types processed in parallel (0 uses the config)",
					},
				},
				Action: func(c *cli.Context) error { return ingestCommand(c, st) },
			},
			{
				Name:      "ask",
				Usage:     "Answer one question and print the retrieved context",
				ArgsUsage: "<question>",
				Action:    func(c *cli.Context) error { return askCommand(c, st) },
			},
			{
				Name:  "serve",
				Usage: "Serve POST /rag/ask and consume ingestion requests",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "HTTP port (0 uses the config)",
					},
					&cli.BoolFlag{
						Name:  "refresh-jurusan",
						Usage: "Re-ingest the jurusan feed on the configured cron schedule",
					},
				},
				Action: func(c *cli.Context) error { return serveCommand(c, st) },
			},
		},
	}
}

func newLogger(cfg *config.Config, jsonOut bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func ingestCommand(c *cli.Context, st *stack) error {
	sel, err := ingest.ParseSelector(c.String("type"))
	if err != nil {
		return cli.Exit(err, exitFailure)
	}
	if w := c.Int("workers"); w > 0 {
		st.cfg.Ingest.Workers = w
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := st.orchestrator(ctx, nil)
	if err != nil {
		return err
	}
	out, err := o.WithFresh(c.Bool("fresh")).Run(ctx, sel)
	printOutcome(c.App.Writer, out)
	if err != nil {
		return cli.Exit(err, exitFailure)
	}
	return nil
}

func printOutcome(w io.Writer, out ingest.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tPROCESSED\tSTORED\tSKIPPED\tFAILED")
	for _, p := range out.Types {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", p.SourceType, p.Processed, p.Stored, p.Skipped, p.Failed)
	}
	t := out.Totals()
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t%d\n", t.Processed, t.Stored, t.Skipped, t.Failed)
	tw.Flush()
	fmt.Fprintf(w, "%s in %s\n", out.Status, out.Duration.Round(time.Millisecond))
}

func askCommand(c *cli.Context, st *stack) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return cli.Exit("ask: a question is required", exitFailure)
	}
	svc, err := st.ragService(c.Context)
	if err != nil {
		return err
	}
	ans, err := svc.Answer(c.Context, question)
	if err != nil {
		var uf *domain.UserFacingError
		if errors.As(err, &uf) {
			return cli.Exit(uf.Message, exitUnprocessable)
		}
		return cli.Exit(err, exitFailure)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Pertanyaan: %s\nTerjemahan: %s\n\n%s\n", ans.Question, ans.TranslatedQuestion, ans.Reply)
	if len(ans.Context) > 0 {
		fmt.Fprintf(w, "\nKonteks (%d):\n", len(ans.Context))
		for _, line := range ans.Context {
			fmt.Fprintf(w, "- %s\n", strings.ReplaceAll(line, "\n", "\n  "))
		}
	}
	return nil
}

func serveCommand(c *cli.Context, st *stack) error {
	cfg, log := st.cfg, st.log
	if p := c.Int("port"); p > 0 {
		cfg.Server.Port = p
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := st.ragService(ctx)
	if err != nil {
		return err
	}
	rt := routes{ask: svc, met: st.met, log: log, corsOrigin: cfg.Server.CORSOrigin}

	var reporters ingest.Reporters
	reporters = append(reporters, ingest.LogReporter{Logger: log})
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name("karir"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		reporters = append(reporters, ingest.NewBusReporter(nc, log))
		rt.publish = func(ctx context.Context, req ingest.Request) error {
			return natsutil.Publish(ctx, nc, ingest.RequestSubject, req)
		}
	}

	var o *ingest.Orchestrator
	if nc != nil || c.Bool("refresh-jurusan") {
		if o, err = st.orchestrator(ctx, reporters); err != nil {
			return err
		}
	}
	if nc != nil {
		sub, err := ingest.StartConsumer(nc, o, log)
		if err != nil {
			return fmt.Errorf("ingest consumer: %w", err)
		}
		defer sub.Unsubscribe()
		log.Info("consuming ingestion requests", "subject", ingest.RequestSubject)
	}
	if c.Bool("refresh-jurusan") {
		if cfg.Jurusan.URL == "" {
			return cli.Exit("serve: --refresh-jurusan needs JURUSAN_URL", exitFailure)
		}
		sched := ingest.NewScheduler(log)
		if err := sched.RefreshJurusan(cfg.Jurusan.Schedule, o); err != nil {
			return err
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
		log.Info("jurusan refresh scheduled", "schedule", cfg.Jurusan.Schedule)
	}

	servers := []*http.Server{newServer(cfg.Server.Port, newRouter(rt))}
	if cfg.Server.MetricsPort > 0 {
		servers = append(servers, newServer(cfg.Server.MetricsPort, st.met.Handler()))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			log.Info("http server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutCtx); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	return runErr
}

func newServer(port int, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
