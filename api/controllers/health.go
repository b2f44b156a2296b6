package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/pharmexa/pharmastock-backend/api/responses"
	"github.com/pharmexa/pharmastock-backend/pkg/bigquery"
	"github.com/pharmexa/pharmastock-backend/pkg/config"
	"github.com/pharmexa/pharmastock-backend/pkg/db"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	pkgredis "github.com/pharmexa/pharmastock-backend/pkg/redis"
)

const readinessTimeout = 5 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PharmaStock-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every hard dependency. Optional dependencies that are not
// wired (nil pingers) are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger, bqP bigquery.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PharmaStock-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		failed := false

		run := func(name string, ping func(context.Context) error) {
			if ping == nil {
				return
			}
			if err := ping(ctx); err != nil {
				checks[name] = "down"
				failed = true
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				return
			}
			checks[name] = "ok"
		}

		if dbP != nil {
			run("postgres", dbP.Ping)
		}
		if redisP != nil {
			run("redis", redisP.Ping)
		}
		if bqP != nil {
			run("bigquery", bqP.Ping)
		}

		if failed {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
