package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pharmexa/pharmastock-backend/api/controllers"
	"github.com/pharmexa/pharmastock-backend/api/middleware"
	"github.com/pharmexa/pharmastock-backend/internal/alerts"
	"github.com/pharmexa/pharmastock-backend/internal/audit"
	"github.com/pharmexa/pharmastock-backend/internal/categories"
	"github.com/pharmexa/pharmastock-backend/internal/medications"
	"github.com/pharmexa/pharmastock-backend/internal/replenishments"
	"github.com/pharmexa/pharmastock-backend/internal/users"
	"github.com/pharmexa/pharmastock-backend/pkg/bigquery"
	"github.com/pharmexa/pharmastock-backend/pkg/config"
	"github.com/pharmexa/pharmastock-backend/pkg/db"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	pkgredis "github.com/pharmexa/pharmastock-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. Optional entries (bigquery,
// metrics registry) may be nil.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *pkgredis.Client
	BigQuery bigquery.Pinger
	Registry *prometheus.Registry

	Users           users.Service
	Medications     medications.Service
	Alerts          alerts.Service
	Replenishments  replenishments.Service
	Categories      categories.Service
	AuditRepository audit.Repository
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRate.LoginWindow,
		cfg.AuthRate.LoginIPLimit,
		cfg.AuthRate.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis, deps.BigQuery))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Users, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/medications", func(r chi.Router) {
			r.Get("/", controllers.MedicationList(deps.Medications, logg))
			r.Post("/", controllers.MedicationCreate(deps.Medications, logg))
			r.Get("/{medicationId}", controllers.MedicationDetail(deps.Medications, logg))
			r.Put("/{medicationId}", controllers.MedicationUpdate(deps.Medications, logg))
			r.Post("/{medicationId}/quantity", controllers.MedicationQuantityUpdate(deps.Medications, logg))
			r.Delete("/{medicationId}", controllers.MedicationDelete(deps.Medications, logg))
			r.Get("/{medicationId}/audit", controllers.MedicationAuditTrail(deps.AuditRepository, logg))
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", controllers.AlertList(deps.Alerts, logg))
			r.Get("/active", controllers.AlertActive(deps.Alerts, logg))
			r.Get("/summary", controllers.AlertSummary(deps.Alerts, logg))
			r.Post("/", controllers.AlertCreate(deps.Alerts, logg))
			r.Get("/{alertId}", controllers.AlertDetail(deps.Alerts, logg))
			r.Put("/{alertId}", controllers.AlertUpdate(deps.Alerts, logg))
			r.Post("/{alertId}/resolve", controllers.AlertResolve(deps.Alerts, logg))
			r.Delete("/{alertId}", controllers.AlertDelete(deps.Alerts, logg))
		})

		r.Route("/replenishments", func(r chi.Router) {
			r.Get("/", controllers.ReplenishmentList(deps.Replenishments, logg))
			r.Get("/pending", controllers.ReplenishmentPending(deps.Replenishments, logg))
			r.Post("/", controllers.ReplenishmentCreate(deps.Replenishments, logg))
			r.Get("/{requestId}", controllers.ReplenishmentDetail(deps.Replenishments, logg))
			r.Put("/{requestId}", controllers.ReplenishmentUpdate(deps.Replenishments, logg))
			r.Delete("/{requestId}", controllers.ReplenishmentDelete(deps.Replenishments, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, string(enums.RoleAdmin), string(enums.RoleSiteManager)))
				r.Post("/{requestId}/approve", controllers.ReplenishmentApprove(deps.Replenishments, logg))
				r.Post("/{requestId}/reject", controllers.ReplenishmentReject(deps.Replenishments, logg))
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoryList(deps.Categories, logg))
			r.Post("/", controllers.CategoryCreate(deps.Categories, logg))
			r.Get("/{categoryId}", controllers.CategoryDetail(deps.Categories, logg))
			r.Put("/{categoryId}", controllers.CategoryUpdate(deps.Categories, logg))
			r.Delete("/{categoryId}", controllers.CategoryDelete(deps.Categories, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.RoleAdmin), logg))
			r.Get("/", controllers.UserList(deps.Users, logg))
			r.Post("/", controllers.UserCreate(deps.Users, logg))
			r.Get("/{userId}", controllers.UserDetail(deps.Users, logg))
			r.Post("/{userId}/activate", controllers.UserActivate(deps.Users, logg))
			r.Post("/{userId}/deactivate", controllers.UserDeactivate(deps.Users, logg))
		})
	})

	return r
}
