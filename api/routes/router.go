package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/palletwine/palletwine-backend/api/controllers"
	checkoutcontrollers "github.com/palletwine/palletwine-backend/api/controllers/checkout"
	palletcontrollers "github.com/palletwine/palletwine-backend/api/controllers/pallets"
	reservationcontrollers "github.com/palletwine/palletwine-backend/api/controllers/reservations"
	"github.com/palletwine/palletwine-backend/api/middleware"
	"github.com/palletwine/palletwine-backend/pkg/auth/session"
	"github.com/palletwine/palletwine-backend/pkg/config"
	"github.com/palletwine/palletwine-backend/pkg/db"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/redis"
)

// Services groups the domain services mounted by the router.
type Services struct {
	Zones        checkoutcontrollers.ZoneService
	CartItems    checkoutcontrollers.CartLister
	Cart         checkoutcontrollers.CartValidator
	Pallets      palletcontrollers.Service
	Reservations reservationcontrollers.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	metricsHandler http.Handler,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	// typed nils must not reach the middleware interfaces
	var idempotency middleware.IdempotencyStore
	var limiter middleware.RateLimitStore
	ready := map[string]controllers.Pinger{}
	if dbP != nil {
		ready["postgres"] = dbP
	}
	if redisClient != nil {
		idempotency = redisClient
		limiter = redisClient
		ready["redis"] = redisClient
	}

	zonesPolicy := middleware.NewRateLimitPolicy("checkout_zones", cfg.HTTP.ZonesRateWindow, cfg.HTTP.ZonesRateLimit)
	idempotent := middleware.Idempotent(idempotency, middleware.IdempotencyTTL, logg)
	idempotentBooking := middleware.Idempotent(idempotency, middleware.BookingIdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.MemberRoleCustomer, enums.MemberRoleAdmin))
				r.With(middleware.RateLimit(zonesPolicy, limiter, logg)).
					Post("/checkout/zones", checkoutcontrollers.DetermineZones(svc.Zones, svc.CartItems, logg))
				r.Get("/cart/validate", checkoutcontrollers.ValidateCart(svc.Cart, logg))
				r.Post("/cart/validate", checkoutcontrollers.ValidateCartLines(svc.Cart, logg))
			})

			r.Route("/pallets", func(r chi.Router) {
				r.Get("/", palletcontrollers.List(svc.Pallets, logg))
				r.Get("/{palletId}", palletcontrollers.Detail(svc.Pallets, logg))
				r.Get("/{palletId}/shipping-quote", palletcontrollers.ShippingQuote(svc.Pallets, logg))
				r.With(middleware.RequireRole(logg, enums.MemberRoleCustomer), idempotentBooking).
					Post("/{palletId}/bookings", palletcontrollers.Book(svc.Pallets, logg))
			})

			r.Route("/reservations", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.MemberRoleCustomer))
				r.Get("/", reservationcontrollers.List(svc.Reservations, logg))
				r.With(idempotent).Post("/{reservationId}/cancel", reservationcontrollers.Cancel(svc.Reservations, logg))
			})
		})

		r.Route("/admin/v1/pallets", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleAdmin))
			r.Get("/", palletcontrollers.AdminList(svc.Pallets, logg))
			r.With(idempotent).Post("/", palletcontrollers.AdminCreate(svc.Pallets, logg))
			r.Get("/{palletId}", palletcontrollers.Detail(svc.Pallets, logg))
			r.With(idempotent).Post("/{palletId}/status", palletcontrollers.AdminUpdateStatus(svc.Pallets, logg))
			r.With(idempotent).Post("/{palletId}/reopen", palletcontrollers.AdminReopen(svc.Pallets, logg))
			r.With(idempotentBooking).Post("/{palletId}/bookings", palletcontrollers.AdminBook(svc.Pallets, logg))
		})
	})

	return r
}
