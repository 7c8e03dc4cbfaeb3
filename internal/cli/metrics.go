package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/harun/agentcore/internal/observability"
	"github.com/rs/zerolog"
)

// metricsServer exposes Prometheus metrics while a command runs.
type metricsServer struct {
	server   *http.Server
	listener net.Listener
	log      zerolog.Logger
}

// startMetricsServer serves /metrics and /healthz on addr until Close.
func startMetricsServer(addr string, log zerolog.Logger) (*metricsServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s := &metricsServer{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: listener,
		log:      log,
	}
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	log.Info().Str("addr", listener.Addr().String()).Msg("Serving metrics")
	return s, nil
}

// Addr returns the bound address, useful when addr used port 0.
func (s *metricsServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
