package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

type Server struct {
	srv *http.Server
}

func NewServer(addr string, cfg RouterConfig) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run serves until ctx ends, then drains in-flight requests. Request
// contexts derive from ctx so SSE streams end with it.
func (s *Server) Run(ctx context.Context) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
