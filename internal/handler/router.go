package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/ordermart/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса ordermart.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.RegisterClient)
			r.Get("/{id}", h.GetClient)
			r.Post("/{id}/operations", h.ApplyOperation)
			r.Get("/{id}/operations", h.ListOperations)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.SubmitOrder)
			r.Post("/next-code", h.NextOrderCode)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/advance", h.AdvanceStatus)
		})

		r.Get("/me/orders", h.GetMyOrders)
		r.Get("/me/operations", h.GetMyOperations)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
