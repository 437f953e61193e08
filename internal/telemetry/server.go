package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// shutdownTimeout bounds how long Shutdown waits for in-flight scrapes.
const shutdownTimeout = 5 * time.Second

// Server serves /metrics next to the running command.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     zerolog.Logger
	done       chan struct{}
}

// Serve starts serving handler at /metrics on addr and returns once the
// listener is bound.
func Serve(addr string, handler http.Handler, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	s := &Server{
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: ln,
		logger:   logger,
		done:     make(chan struct{}),
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("metrics server starting")

	go func() {
		defer close(s.done)

		// ErrServerClosed is expected during graceful shutdown
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	return s, nil
}

// Addr returns the bound address, useful when addr had port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting briefly for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	<-s.done
	if err != nil {
		s.logger.Error().Err(err).Msg("metrics server shutdown failed")
		return err
	}
	s.logger.Info().Msg("metrics server stopped")
	return nil
}
