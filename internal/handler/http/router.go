package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/marketplace/pkg/health"
	"github.com/utafrali/marketplace/pkg/middleware"
)

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	ServiceName string

	Catalog    CatalogService
	Categories CategoryService
	Stores     StoreService
	Reviews    ReviewService
	Chat       ChatService

	// Stream enables GET /conversations/stream when set.
	Stream NotificationStream

	// Media serves uploaded objects under /media/ when set.
	Media ObjectOpener

	Health         *health.Handler
	ValidateToken  middleware.TokenValidator
	CORS           middleware.CORSConfig
	MaxUploadBytes int64

	// RateLimit guards mutating routes. Nil disables it.
	RateLimit func(http.Handler) http.Handler

	Logger *slog.Logger
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	limit := cfg.RateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Media != nil {
		r.Get("/media/*", MediaHandler(cfg.Media))
	}

	products := NewProductHandler(cfg.Catalog, cfg.MaxUploadBytes, logger)
	stores := NewStoreHandler(cfg.Stores, cfg.MaxUploadBytes, logger)
	categories := NewCategoryHandler(cfg.Categories, logger)
	reviews := NewReviewHandler(cfg.Reviews, logger)
	chat := NewChatHandler(cfg.Chat, cfg.Stream, logger)

	authenticated := middleware.Auth(cfg.ValidateToken)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)
	sellers := middleware.RequireRole(middleware.RoleSeller, middleware.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads
		r.Get("/products", products.ListProducts)
		r.Get("/products/{id}", products.GetProduct)
		r.Get("/products/{id}/reviews", reviews.ListReviews)
		r.Get("/stores/{id}", stores.GetStore)
		r.Get("/stores/{id}/products", products.ListStoreProducts)
		r.Get("/categories", categories.ListCategories)
		r.Get("/categories/tree", categories.CategoryTree)
		r.Get("/categories/{id}", categories.GetCategory)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.With(limit, sellers).Post("/products", products.CreateProduct)
			r.With(limit).Put("/products/{id}", products.UpdateProduct)
			r.With(limit).Delete("/products/{id}", products.DeleteProduct)

			r.With(limit).Post("/products/{id}/reviews", reviews.CreateReview)
			r.With(limit).Delete("/reviews/{id}", reviews.DeleteReview)

			r.Get("/me/stores", stores.ListMyStores)
			r.With(limit).Post("/stores", stores.OpenStore)
			r.With(limit).Put("/stores/{id}/logo", stores.UpdateLogo)
			r.With(limit, adminOnly).Patch("/stores/{id}/status", stores.ChangeStatus)

			r.With(limit, adminOnly).Post("/categories", categories.CreateCategory)
			r.With(limit, adminOnly).Put("/categories/{id}", categories.UpdateCategory)

			r.Get("/conversations", chat.ListConversations)
			r.Get("/conversations/unread", chat.UnreadCount)
			if cfg.Stream != nil {
				r.Get("/conversations/stream", chat.Stream)
			}
			r.With(limit).Post("/conversations", chat.StartConversation)
			r.Get("/conversations/{id}/messages", chat.ListMessages)
			r.With(limit).Post("/conversations/{id}/messages", chat.SendMessage)
			r.With(limit).Post("/conversations/{id}/read", chat.MarkRead)
		})
	})

	return r
}
