// Package httpserver runs the small HTTP surface the agent exposes: a
// Prometheus scrape endpoint.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// forceShutdownAfter bounds how long Serve waits for in-flight scrapes
// to finish before forcing the listener closed.
const forceShutdownAfter = 10 * time.Second

// New builds a Server bound to addr, serving registry on /metrics.
func New(addr string, registry *prometheus.Registry, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{
		logger: logger,
		addr:   addr,
		mux:    mux,
	}
}

// Server is the agent's metrics-only HTTP surface.
type Server struct {
	logger *zap.Logger
	addr   string
	mux    *http.ServeMux
}

// Serve listens on addr until ctx is cancelled, then shuts down
// gracefully, forcing the listener closed if it takes longer than
// forceShutdownAfter. notifyReady, if non-nil, is closed once the
// listener is about to start accepting connections — useful in tests
// that need to avoid a race against the first request.
func (s *Server) Serve(ctx context.Context, notifyReady chan struct{}) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("metrics server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), forceShutdownAfter)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics server forcefully shut down", zap.Error(err))
		}
	}()

	s.logger.Info("metrics server listening", zap.String("addr", s.addr))
	if notifyReady != nil {
		close(notifyReady)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
