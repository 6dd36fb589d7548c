package controllers

import (
	"context"
	"net/http"

	"github.com/coursevault/coursevault-backend/api/responses"
	"github.com/coursevault/coursevault-backend/pkg/config"
	"github.com/coursevault/coursevault-backend/pkg/logger"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

// Pinger is implemented by backends that can verify connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CourseVault-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness of the wired backends. Nil pingers are
// skipped so the memory backend needs no checks.
func HealthReady(cfg *config.Config, logg *logger.Logger, backends map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CourseVault-Env", cfg.App.Env)

		for name, backend := range backends {
			if backend == nil {
				continue
			}
			if err := backend.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
