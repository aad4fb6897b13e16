package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/aretw0/flowgraph/pkg/adapters/http"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// Handler returns the HTTP handler of the app.
func (a *App) Handler() http.Handler {
	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(a.Logger),
		httpAdapter.WithStreams(a.Streams),
		httpAdapter.WithRunTimeout(a.Config.Server.RunTimeout),
		httpAdapter.WithDefaultGraph(a.CodeReviewGraphID),
	}
	if a.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetricsHandler(a.Metrics.Handler()))
	}
	return httpAdapter.NewHandler(a.Service, opts...)
}

// Serve runs the HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func (a *App) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("Starting flowgraph server", "addr", addr, "store", a.Config.Store.Driver)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("Start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			return srv.Close()
		}
		a.Logger.Info("flowgraph server stopped gracefully")
		return nil
	})
	return g.Wait()
}
