package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apihttp "edurag/internal/http"
	"edurag/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

// Router builds the HTTP API over the app's components.
func (a *App) Router() http.Handler {
	return apihttp.NewRouter(&apihttp.Deps{
		Service:          a.Service,
		Uploads:          a.Uploads,
		VectorStore:      a.VectorStore,
		DB:               a.DB,
		HealthCollection: a.Config.QdrantCollectionPrefix + HealthCheckCollection,
		Backends:         a.AvailableBackends,
		DefaultBackend:   a.Config.DefaultBackend,
	})
}

// Serve runs the HTTP API on addr until ctx is cancelled, then shuts down gracefully.
// When WatchUploads is set the uploads directory is watched for new documents.
func (a *App) Serve(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan struct{})
	if a.Config.WatchUploads {
		w := watcher.New(a.Uploads.Root(), a.Service, 0)
		go func() {
			defer close(watchDone)
			if err := w.Run(ctx); err != nil {
				slog.Error("Uploads watcher stopped", "error", err)
			}
		}()
	} else {
		close(watchDone)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API server shutdown", "error", err)
	}
	cancel()
	<-watchDone
	return serveErr
}
