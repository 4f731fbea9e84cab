package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/matheus3301/convo/internal/devserver"
	"go.uber.org/zap"
)

// Server owns the TCP listener and HTTP server in front of the devserver
// handler.
type Server struct {
	dev      *devserver.Server
	http     *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewServer binds p.Addr. Binding happens here so that a busy port fails
// the fx graph instead of a background goroutine.
func NewServer(p Params, dev *devserver.Server, logger *zap.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", p.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", p.Addr, err)
	}
	return &Server{
		dev: dev,
		http: &http.Server{
			Handler:           dev.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr returns the bound address, which differs from Params.Addr when the
// port was 0.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Start serves requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.Addr().String()))
	if err := s.http.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the cable sockets, which Shutdown does not track, then
// drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server stopping")
	s.dev.Close()
	return s.http.Shutdown(ctx)
}
