package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/personacraft-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/personacraft-backend/api/controllers/webhooks"
	"github.com/angelmondragon/personacraft-backend/api/middleware"
	"github.com/angelmondragon/personacraft-backend/internal/personas"
	"github.com/angelmondragon/personacraft-backend/internal/preferences"
	"github.com/angelmondragon/personacraft-backend/internal/users"
	"github.com/angelmondragon/personacraft-backend/pkg/config"
	"github.com/angelmondragon/personacraft-backend/pkg/db"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
	"github.com/angelmondragon/personacraft-backend/pkg/redis"
	"github.com/angelmondragon/personacraft-backend/pkg/stackauth"
)

// Dependencies are the collaborators the HTTP surface needs. Nil fields
// disable the feature they back.
type Dependencies struct {
	DB            db.Pinger
	Redis         *redis.Client
	Gatherer      prometheus.Gatherer
	StackAuth     *stackauth.Client
	Users         users.Service
	Personas      personas.Service
	Preferences   preferences.Service
	Generator     controllers.PersonaGenerator
	StackIngestor webhookcontrollers.StackAuthIngestor
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	authOpts := middleware.AuthOptions{CacheTTL: cfg.StackAuth.IdentityCacheTTL}
	if deps.StackAuth != nil {
		authOpts.Resolver = deps.StackAuth
	}

	var (
		redisPinger redis.Pinger
		idemStore   redis.IdempotencyStore
	)
	generateLimit := func(next http.Handler) http.Handler { return next }
	if deps.Redis != nil {
		redisPinger = deps.Redis
		idemStore = deps.Redis
		authOpts.Cache = deps.Redis
		generateLimit = middleware.UserRateLimit(
			middleware.NewRateLimitPolicy("generate", cfg.Generation.RateLimitWindow, cfg.Generation.RateLimit),
			deps.Redis,
			logg,
		)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stack-auth", webhookcontrollers.StackAuthWebhook(deps.StackIngestor, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authOpts, logg))

			r.Get("/me", controllers.Me(deps.Users, logg))

			replay := middleware.Idempotency(idemStore, cfg.Webhook.IdempotencyTTL, logg)

			r.Route("/personas", func(r chi.Router) {
				r.Get("/", controllers.ListPersonas(deps.Personas, logg))
				r.With(generateLimit, replay).Post("/generate", controllers.GeneratePersonas(deps.Generator, logg))
				r.With(replay).Post("/migrate", controllers.MigratePersonas(deps.Personas, logg))
				r.Get("/{personaId}", controllers.GetPersona(deps.Personas, logg))
				r.Put("/{personaId}", controllers.UpdatePersona(deps.Personas, logg))
				r.Delete("/{personaId}", controllers.DeletePersona(deps.Personas, logg))
			})

			r.Route("/preferences", func(r chi.Router) {
				r.Get("/", controllers.GetPreferences(deps.Preferences, logg))
				r.Put("/", controllers.UpdatePreferences(deps.Preferences, logg))
			})
		})
	})

	return r
}
