package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Orders   *OrdersHandler
	Cart     *CartHandler
	Products *ProductHandler
	Users    *UserHandler
}

// NewRouter mounts every handler under /api/v1.
func NewRouter(h Handlers, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(UserIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.CreateOrder)
			r.Get("/", h.Orders.ListOrders)
			r.Get("/summary", h.Orders.Summary)
			r.Get("/status/{status}", h.Orders.ListByStatus)
			r.Route("/{order_id}", func(r chi.Router) {
				r.Get("/", h.Orders.GetOrder)
				r.Delete("/", h.Orders.DeleteOrder)
				r.Patch("/status", h.Orders.UpdateStatus)
				r.Patch("/payment", h.Orders.UpdatePayment)
				r.Post("/cancel", h.Orders.CancelOrder)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			r.Get("/validate", h.Cart.Validate)
			r.Post("/checkout", h.Cart.Checkout)
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.Products.Create)
			r.Get("/", h.Products.List)
			r.Route("/{product_id}", func(r chi.Router) {
				r.Get("/", h.Products.Get)
				r.Put("/", h.Products.Update)
				r.Delete("/", h.Products.Delete)
				r.Post("/stock", h.Products.AdjustStock)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.Users.Register)
			r.Post("/login", h.Users.Login)
			r.Route("/{user_id}", func(r chi.Router) {
				r.Get("/", h.Users.Get)
				r.Delete("/", h.Users.Delete)
				r.Post("/deactivate", h.Users.Deactivate)
			})
		})
	})

	return r
}
