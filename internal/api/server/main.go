package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bz888/chatprobe/internal/api/server/handlers"
	"github.com/bz888/chatprobe/internal/logger"
)

const chunkPause = 80 * time.Millisecond

// NewMux returns the routes of the local echo endpoint.
func NewMux(responder handlers.Responder) *http.ServeMux {
	mux := http.NewServeMux()
	registerRoutes(mux, handlers.NewHandler(responder))
	return mux
}

// Run serves the echo endpoint on address until ctx is cancelled.
func Run(ctx context.Context, address string) error {
	localLogger := logger.NewLogger("Server")
	srv := &http.Server{
		Addr:              address,
		Handler:           NewMux(handlers.Echo{Pause: chunkPause}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		localLogger.Info("Server started on http://" + address + "/chat")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
