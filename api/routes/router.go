package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/mediconnect-backend/api/controllers"
	medicationcontrollers "github.com/angelmondragon/mediconnect-backend/api/controllers/medications"
	patientcontrollers "github.com/angelmondragon/mediconnect-backend/api/controllers/patients"
	requestcontrollers "github.com/angelmondragon/mediconnect-backend/api/controllers/requests"
	"github.com/angelmondragon/mediconnect-backend/api/middleware"
	"github.com/angelmondragon/mediconnect-backend/internal/fulfillment"
	"github.com/angelmondragon/mediconnect-backend/internal/medications"
	"github.com/angelmondragon/mediconnect-backend/internal/patients"
	"github.com/angelmondragon/mediconnect-backend/pkg/config"
	"github.com/angelmondragon/mediconnect-backend/pkg/db"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/redis"
)

// Services groups the domain services the HTTP surface exposes.
type Services struct {
	Fulfillment fulfillment.Service
	Medications medications.Service
	Patients    patients.Service
}

// NewRouter builds the API. redisClient may be nil, which turns off
// idempotent replay and rate limiting.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": dbP}
	var (
		idempotencyStore redis.IdempotencyStore
		rateStore        middleware.RateLimiterStore
	)
	if redisClient != nil {
		readiness["redis"] = redisClient
		idempotencyStore = redisClient
		rateStore = redisClient
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	writePolicy := middleware.NewRateLimitPolicy("writes", cfg.RateLimit.WriteWindow, int(cfg.RateLimit.WriteLimit))
	timeout := cfg.Fulfillment.OperationTimeout

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.RequireActor(logg))
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Idempotency.TTL, logg))

		staff := r.With(middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleSystem))
		writes := r.With(middleware.RateLimit(writePolicy, rateStore, logg))
		adminWrites := writes.With(middleware.RequireRole(logg, enums.ActorRoleAdmin))

		r.Get("/requests", requestcontrollers.List(svc.Fulfillment, timeout, logg))
		r.Get("/requests/{requestId}", requestcontrollers.Get(svc.Fulfillment, timeout, logg))
		writes.Post("/requests", requestcontrollers.Create(svc.Fulfillment, timeout, logg))
		writes.Post("/requests/{requestId}/transition", requestcontrollers.Transition(svc.Fulfillment, timeout, logg))
		writes.Delete("/requests/{requestId}", requestcontrollers.Delete(svc.Fulfillment, timeout, logg))

		r.Get("/patients/{patientId}", patientcontrollers.Get(svc.Patients, timeout, logg))
		r.Get("/patients/{patientId}/requests", requestcontrollers.ListForPatient(svc.Fulfillment, timeout, logg))
		adminWrites.Post("/patients", patientcontrollers.Create(svc.Patients, timeout, logg))

		r.Get("/medications", medicationcontrollers.List(svc.Medications, timeout, logg))
		r.Get("/medications/{medicationId}", medicationcontrollers.Get(svc.Medications, timeout, logg))
		staff.Get("/medications/{medicationId}/movements", medicationcontrollers.Movements(svc.Medications, timeout, logg))
		staff.Get("/medications/{medicationId}/reconcile", medicationcontrollers.Reconcile(svc.Fulfillment, timeout, logg))
		adminWrites.Post("/medications", medicationcontrollers.Create(svc.Medications, timeout, logg))
		adminWrites.Post("/medications/{medicationId}/adjust", medicationcontrollers.Adjust(svc.Medications, timeout, logg))
	})

	return r
}
