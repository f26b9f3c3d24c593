package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the registry on /metrics.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(registry *Registry, addr string) *MetricsServer {
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(registry.Gatherer(), promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the HTTP handler of the server.
func (s *MetricsServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
