package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/pos-checkout/api/responses"
	"github.com/angelmondragon/pos-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/pos-checkout/pkg/errors"
	"github.com/angelmondragon/pos-checkout/pkg/logger"
	"github.com/angelmondragon/pos-checkout/pkg/redis"
)

const (
	envHeader        = "X-POS-Env"
	readinessTimeout = 2 * time.Second
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready once the idempotency store answers. A nil pinger
// means redis is not configured and submissions run unguarded.
func HealthReady(cfg *config.Config, logg *logger.Logger, redisPinger redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]string{"redis": "disabled"}
		if redisPinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()
			if err := redisPinger.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
			checks["redis"] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
