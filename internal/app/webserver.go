package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vk/framegridgo/internal/ctxlog"
)

// webHandler serves the Prometheus scrape endpoint and liveness.
func (a *App) webHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		a.logger.Debug("Health check endpoint hit.",
			"remote_addr", r.RemoteAddr, "path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	return mux
}

// serveWeb runs the observability HTTP server until ctx is canceled,
// then shuts it down gracefully.
func (a *App) serveWeb(ctx context.Context, port int) error {
	logger := ctxlog.FromContext(ctx)

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: a.webHandler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("🩺 Observability server starting",
		"address", fmt.Sprintf("http://localhost%s/metrics", addr))

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("observability server shutdown: %w", err)
		}
		logger.Debug("Observability server shut down gracefully.")
		return nil
	case err := <-errCh:
		// ListenAndServe returns ErrServerClosed on graceful shutdown;
		// anything else means the listener died under us.
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("observability server: %w", err)
	}
}
