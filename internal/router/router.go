package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"myshop-backend/internal/handlers"
	"myshop-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	aiHandler *handlers.AIHandler,
	productHandler *handlers.ProductHandler,
	orderHandler *handlers.OrderHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// ──── Auth Routes (public) ────
	r.Route("/auth", func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		// Logout requires auth
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/logout", authHandler.Logout)
		})
	})

	r.Route("/api", func(r chi.Router) {

		// ──── AI Routes ────
		r.Route("/ai", func(r chi.Router) {
			r.Get("/status", aiHandler.Status) // Public

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/chat", aiHandler.Chat)
				r.Get("/history", aiHandler.History)
				r.Delete("/history", aiHandler.ClearHistory)
			})
		})

		// ──── Product Routes (public) ────
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)
		})

		// ──── Order Routes ────
		r.Route("/orders", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", orderHandler.Create)
			r.Get("/", orderHandler.List)
		})
	})

	return r
}
