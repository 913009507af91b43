package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *CartHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/registers/{ownerID}/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)

		r.Post("/items", h.AddItem)
		r.Delete("/items", h.ClearItems)
		r.Put("/items/{productID}/quantity", h.UpdateQuantity)
		r.Put("/items/{productID}/discount", h.UpdateItemDiscount)
		r.Delete("/items/{productID}", h.RemoveItem)

		r.Post("/payments", h.AddPayment)
		r.Delete("/payments", h.ClearPayments)
		r.Delete("/payments/{index}", h.RemovePayment)

		r.Put("/discount", h.SetDiscount)
		r.Put("/customer", h.SetCustomer)
		r.Put("/notes", h.SetNotes)

		r.Post("/checkout", h.Checkout)
	})

	return r
}

// RequestLogger logs one line per request with its status and latency.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
