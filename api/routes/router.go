package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/addresses"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RedisStore is the slice of the Redis client used by HTTP middleware.
type RedisStore interface {
	pkgredis.IdempotencyStore
	middleware.RateLimiter
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisStore RedisStore,
	metricsHandler http.Handler,
	accounts middleware.AccountChecker,
	authService auth.Service,
	addressService addresses.Service,
	cartService cart.Service,
	paymentsService payments.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		cfg.AuthRateLimit.SignupEmailLimit,
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["postgres"] = dbP
	}
	if pinger, ok := redisStore.(controllers.Pinger); ok {
		deps["redis"] = pinger
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(signupPolicy, redisStore, logg)).Post("/signup", controllers.AuthSignup(authService, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, redisStore, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		})

		// Cart routes serve guests and accounts alike.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, accounts, logg))
			r.Use(middleware.GuestSession(cfg.Cart, logg))
			r.Use(middleware.CartIdentity(logg))
			r.Get("/cart", cartcontrollers.CartFetch(cartService, logg))
			r.Post("/cart", cartcontrollers.CartAddLine(cartService, logg))
			r.Put("/cart/{variantId}", cartcontrollers.CartSetQuantity(cartService, logg))
			r.Delete("/cart/{variantId}", cartcontrollers.CartRemoveLine(cartService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, accounts, logg))
			r.Use(middleware.Idempotency(redisStore, logg))

			r.With(middleware.GuestSession(cfg.Cart, logg)).Post("/cart/merge", cartcontrollers.CartMerge(cartService, logg))

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(addressService, logg))
				r.Post("/", controllers.AddressCreate(addressService, logg))
			})
			r.Post("/payments/intents", controllers.PaymentIntentCreate(paymentsService, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(ordersService, logg))
				r.Post("/", ordercontrollers.Place(checkoutService, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, accounts, logg))
		r.Use(middleware.RequireRole(logg, enums.AccountRoleAdmin))
		r.Put("/orders/{orderId}/status", ordercontrollers.AdminUpdateStatus(ordersService, logg))
	})

	return r
}
