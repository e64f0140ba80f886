package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/sourcing-backend/api/controllers"
	"github.com/angelmondragon/sourcing-backend/api/controllers/listings"
	ordercontrollers "github.com/angelmondragon/sourcing-backend/api/controllers/orders"
	quotecontrollers "github.com/angelmondragon/sourcing-backend/api/controllers/quotes"
	requirementcontrollers "github.com/angelmondragon/sourcing-backend/api/controllers/requirements"
	"github.com/angelmondragon/sourcing-backend/api/middleware"
	"github.com/angelmondragon/sourcing-backend/internal/negotiation"
	"github.com/angelmondragon/sourcing-backend/internal/projections"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/sourcing-backend/pkg/redis"
)

// Store is the Redis surface the router needs for idempotency and throttling.
type Store interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
	Ping(context.Context) error
}

// Deps groups everything NewRouter wires into handlers.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           controllers.Pinger
	Store        Store
	Gatherer     prometheus.Gatherer
	Requirements requirements.Service
	Negotiation  negotiation.Service
	Projections  projections.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	ready := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Store != nil {
		ready["redis"] = deps.Store
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	idem := middleware.Idempotency(nil, 0, logg)
	throttle := func(next http.Handler) http.Handler { return next }
	if deps.Store != nil {
		idem = middleware.Idempotency(deps.Store, cfg.Eventing.HTTPIdempotencyTTL, logg)
		policy := middleware.NewRateLimitPolicy("quote_submit", cfg.RateLimit.QuoteSubmitLimit, cfg.RateLimit.QuoteSubmitWindow)
		throttle = middleware.RateLimit(policy, deps.Store, logg)
	}
	buyers := middleware.RequireRole(logg, enums.ActorRoleBuyer)
	merchants := middleware.RequireRole(logg, enums.ActorRoleMerchant)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/pricing/ceilings", controllers.PricingCeilings())

		r.Route("/requirements", func(r chi.Router) {
			r.With(buyers, idem).Post("/", requirementcontrollers.Create(deps.Requirements, logg))
			r.Route("/{requirementId}", func(r chi.Router) {
				r.Get("/", requirementcontrollers.Get(deps.Requirements, deps.Negotiation, logg))
				r.With(buyers).Patch("/", requirementcontrollers.Update(deps.Requirements, logg))
				r.Delete("/", requirementcontrollers.Delete(deps.Requirements, logg))
				r.With(buyers, idem).Post("/publish", requirementcontrollers.Publish(deps.Requirements, logg))
				r.With(idem).Post("/skip", requirementcontrollers.Skip(deps.Negotiation, logg))

				r.Get("/quotes", quotecontrollers.ListForRequirement(deps.Projections, logg))
				r.With(merchants, throttle, idem).Post("/quotes", quotecontrollers.Submit(deps.Negotiation, logg))

				r.With(idem).Post("/order/confirm", ordercontrollers.Confirm(deps.Negotiation, logg))
				r.With(idem).Post("/order/cancel", ordercontrollers.Cancel(deps.Negotiation, logg))
			})
		})

		r.Route("/quotes/{quoteId}", func(r chi.Router) {
			r.Use(buyers)
			r.With(idem).Post("/accept", quotecontrollers.Accept(deps.Negotiation, logg))
			r.With(idem).Post("/reject", quotecontrollers.Reject(deps.Negotiation, logg))
		})

		r.Route("/merchant", func(r chi.Router) {
			r.Use(merchants)
			r.Get("/requirements", listings.OpenRequirements(deps.Projections, logg))
			r.Get("/quotes", listings.MerchantQuotes(deps.Projections, logg))
		})

		r.Route("/buyer", func(r chi.Router) {
			r.Use(buyers)
			r.Get("/requirements", listings.BuyerRequirements(deps.Projections, logg))
			r.Get("/enquiries", listings.BuyerEnquiries(deps.Projections, logg))
		})

		r.Get("/orders/confirmed", ordercontrollers.ListConfirmed(deps.Projections, logg))
	})

	return r
}
