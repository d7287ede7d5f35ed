package metricsserver

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	aesdlog "github.com/aesdlog/aesdlogd"
)

// Server serves /metrics for a single Device on its own HTTP listener,
// independent of the line-protocol Accept Loop in internal/server.
type Server struct {
	httpServer *http.Server
}

// New builds a metrics Server bound to addr (e.g. "127.0.0.1:9100"),
// registering a fresh prometheus.Registry scoped to metrics so repeated
// calls in tests don't collide on the global default registry.
func New(addr string, metrics *aesdlog.Metrics) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(metrics))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// ListenAndServe blocks serving /metrics until the server errors or is shut
// down. It returns nil on a clean Shutdown, mirroring http.Server semantics.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
