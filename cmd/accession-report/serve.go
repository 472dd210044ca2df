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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"accessionreport/internal/adapters/datasets"
	"accessionreport/internal/blob"
	"accessionreport/internal/core"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report, exports and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from ACCESSIONREPORT_HTTP_ADDR)")
	return cmd
}

// server bundles the HTTP handler with the resources it must release.
type server struct {
	handler http.Handler
	worker  *datasets.Worker
	close   func() error
}

func (a *app) buildServer(ctx context.Context) (*server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, err
	}
	svc, db, err := a.openService(ctx, metrics)
	if err != nil {
		return nil, err
	}
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	worker := datasets.NewWorker(svc,
		datasets.NewBlobObjectStore(store),
		datasets.ZapAuditLogger{Logger: a.logger.Named("audit")},
		datasets.WithWorkerLogger(a.logger.Named("exports")),
	)
	worker.Start()

	api := &datasets.Handler{
		Catalog:       svc,
		Exports:       worker,
		DefaultRepoID: a.cfg.RepoID,
		Logger:        a.logger.Named("http"),
	}
	mux := http.NewServeMux()
	mux.Handle("/api/v1/datasets/", api)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	return &server{
		handler: mux,
		worker:  worker,
		close:   db.Close,
	}, nil
}

// shutdown stops the export worker and closes the database.
func (s *server) shutdown(ctx context.Context) error {
	return errors.Join(s.worker.Stop(ctx), s.close())
}

func (a *app) serve(ctx context.Context, addr string) error {
	s, err := a.buildServer(ctx)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return errors.Join(srv.Shutdown(shutdownCtx), s.shutdown(shutdownCtx))
	})
	return g.Wait()
}
