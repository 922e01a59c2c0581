package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/orderdesk/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware административного API.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)

			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Get("/timeline", h.GetTimeline)
				r.Post("/status", h.UpdateOrderStatus)
				r.Get("/invoice", h.GetInvoice)
				r.Post("/returns", h.CreateReturn)
				r.Get("/returns", h.ListOrderReturns)
			})
		})

		r.Route("/returns", func(r chi.Router) {
			r.Get("/", h.ListReturns)

			r.Route("/{returnID}", func(r chi.Router) {
				r.Get("/", h.GetReturn)
				r.Post("/approve", h.ApproveReturn)
				r.Post("/reject", h.RejectReturn)
				r.Post("/pickup", h.PickUpReturn)
				r.Post("/receive", h.ReceiveReturn)
				r.Post("/refund", h.RefundReturn)
			})
		})

		r.Get("/stats", h.GetStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
