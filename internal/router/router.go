package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kapetayo/api/internal/cache"
	"github.com/kapetayo/api/internal/config"
	"github.com/kapetayo/api/internal/database"
	"github.com/kapetayo/api/internal/enum"
	"github.com/kapetayo/api/internal/handler"
	mw "github.com/kapetayo/api/internal/middleware"
	"github.com/kapetayo/api/internal/service"
	"github.com/kapetayo/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// The storefront surface (menu, checkout, order tracking) is public; the
// back office requires authentication, with staff management and the
// catalog behind the manager role.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, menuCache cache.Cache) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Shared services
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, cfg.TaxRate, cfg.DeliveryFee)

	newShiftStore := func(db database.DBTX) service.ShiftStore {
		return database.New(db)
	}
	shiftService := service.NewShiftService(pool, newShiftStore, cfg.OpeningFloatMax, cfg.DiscrepancyThreshold)

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Storefront routes (public)
	menuHandler := handler.NewMenuHandler(queries, menuCache, cfg.MenuCacheTTL)
	menuHandler.RegisterRoutes(r)

	checkoutHandler := handler.NewCheckoutHandler(orderService, queries, hub)
	checkoutHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Orders (cashier + manager)
		orderHandler := handler.NewOrderHandler(orderService, queries, hub)
		r.Route("/orders", orderHandler.RegisterRoutes)

		// Shifts (cashier + manager)
		shiftHandler := handler.NewShiftHandler(shiftService, queries)
		r.Route("/shifts", shiftHandler.RegisterRoutes)

		// Manager-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleManager))

			productHandler := handler.NewProductHandler(queries, menuCache)
			r.Route("/products", productHandler.RegisterRoutes)

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)
		})
	})

	return r
}
