package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/tapestry"
	httpAdapter "github.com/aretw0/tapestry/internal/adapters/http"
	"github.com/aretw0/tapestry/internal/presentation/tui"
	"github.com/aretw0/tapestry/pkg/document"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/aretw0/tapestry/pkg/resource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var saveOnExit bool
	cmd := &cobra.Command{
		Use:   "serve <document>",
		Short: "Edit a document over HTTP",
		Long: `Opens the document, preferring an autosave copy left by an unsaved session, and serves it over HTTP.
Edits are autosaved as configured. Changes stream to clients on /events and metrics are exposed on /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context(), args[0], saveOnExit)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from config)")
	cmd.Flags().BoolVar(&saveOnExit, "save-on-exit", true, "Save the document when the server stops")
	return cmd
}

func (a *app) serve(ctx context.Context, key string, saveOnExit bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := a.registry(ctx)
	if err != nil {
		return err
	}
	b, err := openBackend(a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			a.logger.Warn("failed to close store", "error", err)
		}
	}()

	metrics := observability.NewMetrics()
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(promReg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	ed, err := tapestry.New(append(a.editorOptions(b, reg), tapestry.WithMetrics(metrics))...)
	if err != nil {
		return err
	}
	ws, err := ed.Open(ctx, key)
	if err != nil {
		return err
	}

	server := httpAdapter.NewServer(ws.Document(),
		httpAdapter.WithLogger(a.logger),
		httpAdapter.WithMetrics(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
	)

	if a.cfg.Resources.Watch && a.cfg.Resources.Root != "" {
		if err := a.watchResources(ctx, server); err != nil {
			a.logger.Warn("resource watching disabled", "error", err)
		}
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if out := os.Stdout; tui.IsTerminal(out) {
		tui.PrintBanner(out)
	}
	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("serving document", "addr", srv.Addr, "document", key, "source", ws.Source())
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			_ = srv.Close()
		}
	}

	closeCtx := context.WithoutCancel(ctx)
	if saveOnExit {
		err := server.Edit(func(*document.Document) error { return ws.Save(closeCtx) })
		if err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if err := server.Edit(func(*document.Document) error { return ed.Close(closeCtx) }); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

// watchResources rescans the resource library on change and logs the
// templates the document references but the library lacks.
func (a *app) watchResources(ctx context.Context, server *httpAdapter.Server) error {
	opts := []resource.Option{resource.WithLogger(a.logger)}
	if len(a.cfg.Resources.Patterns) > 0 {
		opts = append(opts, resource.WithPatterns(a.cfg.Resources.Patterns...))
	}
	lib, err := resource.NewLibrary(a.cfg.Resources.Root, opts...)
	if err != nil {
		return err
	}
	report := func(snap resource.Snapshot, err error) {
		if err != nil {
			a.logger.Warn("resource scan failed", "error", err)
			return
		}
		_ = server.Edit(func(d *document.Document) error {
			if d.Closed() {
				return nil
			}
			missing := resource.Missing(d, snap)
			a.logger.Info("resource library scanned", "images", len(snap.Images), "nodes_missing_templates", len(missing))
			return nil
		})
	}
	snap, err := lib.Scan(ctx)
	report(snap, err)
	return lib.Watch(ctx, report)
}
