package routes

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arthurmvo/Coffee-Shop/app"
	"github.com/arthurmvo/Coffee-Shop/handlers"
	"github.com/arthurmvo/Coffee-Shop/middleware"
	"github.com/arthurmvo/Coffee-Shop/utils"
)

// Permissions guarding the drinks endpoints
const (
	PermGetDrinksDetail = "get:drinks-detail"
	PermPostDrinks      = "post:drinks"
	PermPatchDrinks     = "patch:drinks"
	PermDeleteDrinks    = "delete:drinks"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "WWW-Authenticate"},
		MaxAge:         cfg.CORS.MaxAge,
	}))

	// Health check endpoints
	var sqlDB *sql.DB
	if deps.DB != nil {
		sqlDB = deps.DB.DB
	}
	var keys handlers.KeyStatus
	if deps.KeyStore != nil {
		keys = deps.KeyStore
	}
	health := handlers.NewHealthHandler(sqlDB, keys, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Metrics != nil && cfg.Observability.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.Observability.MetricsPath, deps.Metrics.Handler())
	}

	drinks := handlers.NewDrinkHandler(deps.DrinkService, deps.Logger)
	auth := deps.AuthMiddleware

	r.Get("/drinks", drinks.HandleList)
	r.With(auth.RequirePermission(PermGetDrinksDetail)).Get("/drinks-detail", drinks.HandleListDetail)
	r.With(auth.RequirePermission(PermPostDrinks)).Post("/drinks", drinks.HandleCreate)
	r.With(auth.RequirePermission(PermPatchDrinks)).Patch("/drinks/{id}", drinks.HandleUpdate)
	r.With(auth.RequirePermission(PermDeleteDrinks)).Delete("/drinks/{id}", drinks.HandleDelete)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	return r
}
