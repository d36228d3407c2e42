package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mathclub/festival-bbs/internal/config"
)

type Server struct {
	server          *http.Server
	shutDownTimeout time.Duration
	log             *slog.Logger
}

func New(conf *config.Config, handler http.Handler, log *slog.Logger) *Server {
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  conf.HTTPServer.ReadTimeout,
		WriteTimeout: conf.HTTPServer.WriteTimeout,
		Addr:         conf.Addr(),
	}

	return &Server{
		server:          srv,
		shutDownTimeout: conf.HTTPServer.ShutdownTimeout,
		log:             log.With("component", "httpserver"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("listening", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutDownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
