package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/artifacts"
	"github.com/btraven00/linkmedic/internal/metrics"
	"github.com/btraven00/linkmedic/internal/model"
)

// Handler serves the metrics and a read-only view of the monitor.
func Handler(m *Monitor) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/links", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, m.Records(""))
		})
		r.Get("/links/{state}", func(w http.ResponseWriter, req *http.Request) {
			state := model.HealthState(chi.URLParam(req, "state"))
			switch state {
			case model.HealthUnknown, model.HealthHealthy, model.HealthDegraded, model.HealthBroken:
				writeJSON(w, m.Records(state))
			default:
				http.Error(w, "unknown state", http.StatusNotFound)
			}
		})
		r.Get("/alerts", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, m.RecentAlerts())
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := artifacts.NewJSONEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Serve runs the handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
