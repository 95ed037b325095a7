package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
)

type RouterConfig struct {
	Handlers     *Handlers
	CartHandlers *CartHandlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/login", cfg.AuthHandlers.Login)

	// Catalog
	r.Get("/products", cfg.Handlers.GetProducts)
	r.Get("/products/{id}", cfg.Handlers.GetProduct)

	// Storefront cart + checkout
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cfg.CartHandlers.GetCart)
		r.Delete("/", cfg.CartHandlers.ClearCart)
		r.Post("/items", cfg.CartHandlers.AddItem)
		r.Put("/items", cfg.CartHandlers.UpdateItem)
		r.Delete("/items", cfg.CartHandlers.RemoveItem)
		r.Put("/coupon", cfg.CartHandlers.ApplyCoupon)
		r.Delete("/coupon", cfg.CartHandlers.RemoveCoupon)
	})
	r.Post("/checkout", cfg.CartHandlers.Checkout)

	// Orders
	r.Post("/orders", cfg.Handlers.PlaceOrder)
	r.Get("/orders/{id}", cfg.Handlers.GetOrder)

	// Back office
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(cfg.JWTService))
		r.Get("/orders", cfg.Handlers.GetOrders)
		r.Put("/orders/{id}/status", cfg.Handlers.UpdateOrderStatus)
		r.Post("/products", cfg.Handlers.CreateProduct)
	})

	return r
}
