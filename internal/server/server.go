package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type Server struct {
	srv *http.Server
}

// New creates a server. The baseCtx is used as the base context for all
// incoming requests (via BaseContext), so cancelling it winds down in-flight
// evaluation and run requests during graceful shutdown.
func New(baseCtx context.Context, port string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: handler,
			BaseContext: func(_ net.Listener) context.Context {
				return baseCtx
			},
			ReadTimeout: 15 * time.Second,
			// RunJob blocks for the (capped) execution duration.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down server")
	return s.srv.Shutdown(ctx)
}
