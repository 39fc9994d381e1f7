package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"scrapPickup/internal/addressbook"
	"scrapPickup/internal/admin"
	"scrapPickup/internal/auth"
	"scrapPickup/internal/db"
	"scrapPickup/internal/lifecycle"
	"scrapPickup/internal/logging"
	"scrapPickup/internal/loyalty"
	"scrapPickup/internal/metrics"
	"scrapPickup/internal/rates"
)

// Deps are the services the REST surface dispatches to.
type Deps struct {
	DB        *sqlx.DB
	Orders    *lifecycle.Service
	Loyalty   *loyalty.Service
	Rates     *rates.Service
	Addresses *addressbook.Service
	Admin     *admin.Service
	Verifier  auth.Verifier
	Admins    auth.AdminLookup
	Limiter   *RateLimiter
	Origins   []string
	Log       logrus.FieldLogger
}

type server struct {
	Deps
	fail auth.ErrorWriter
}

// NewRouter builds the HTTP handler for every route.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	if d.Limiter == nil {
		d.Limiter = NewRateLimiter(10, 20, d.Log)
	}
	if len(d.Origins) == 0 {
		d.Origins = []string{"*"}
	}
	s := &server{Deps: d, fail: errorWriter(d.Log)}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestContext)
	r.Use(accessLog(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.Origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}))

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(d.Limiter.Handler)
			r.Get("/health", s.health)
			r.Get("/rates", s.publicRates)
			r.Get("/rates/{scrapType}/estimate", s.estimate)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(d.Verifier, s.fail))
			r.Use(d.Limiter.Handler)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", s.createOrder)
				r.Get("/", s.listOrders)
				r.Get("/{orderId}", s.getOrder)
				r.Put("/{orderId}/status", s.updateOrderStatus)
				r.Delete("/{orderId}", s.cancelOrder)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/addresses", s.listAddresses)
				r.Post("/addresses", s.addAddress)
				r.Delete("/addresses/{addressId}", s.deleteAddress)
				r.Put("/addresses/{addressId}/default", s.setDefaultAddress)
				r.Get("/vip-progress", s.getVipProgress)
				r.Put("/vip-progress", s.updateVipProgress)
				r.Delete("/data", s.deleteUserData)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.AdminOnly(d.Admins, s.fail))
				r.Get("/orders", s.adminOrders)
				r.Get("/orders/stats", s.adminStats)
				r.Get("/orders/{orderId}", s.adminGetOrder)
				r.Put("/orders/{orderId}/status", s.adminUpdateOrderStatus)
				r.Put("/orders/{orderId}/payment", s.adminUpdatePayment)
				r.Get("/leaderboard", s.adminLeaderboard)
				r.Get("/users", s.adminUsers)
				r.Put("/users/{uid}/vip-progress", s.adminSetVipProgress)
				r.Post("/users/{uid}/vip-progress/rederive", s.adminRederive)
				r.Get("/rates", s.adminRates)
				r.Put("/rates/{scrapType}", s.adminUpdateRate)
				r.Post("/rates/initialize", s.adminInitializeRates)
			})
		})
	})
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := db.Healthy(ctx, s.DB); err != nil {
		logging.WithContext(r.Context(), s.Log).WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Message: "Service degraded",
			Data:    map[string]string{"status": "degraded", "database": "down"},
			Error:   "database unavailable",
		})
		return
	}
	ok(w, http.StatusOK, "Service healthy", map[string]string{"status": "ok", "database": "up"})
}

func principal(r *http.Request) *auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
