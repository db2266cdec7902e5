package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Upstash-Signature"},
	}))

	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/healthz", h.Healthz)

	r.Get("/webhooks/whatsapp", h.VerifyWebhook)
	r.Post("/webhooks/whatsapp", h.ReceiveWebhook)
	r.Post(inboundPath, h.ReceiveQueued)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", h.HandleMessage)
		r.Post("/cache/clear", h.ClearCache)
		r.Get("/receipts", h.ListReceipts)
		r.Get("/events", h.ListEvents)
		r.Get("/receipts/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.GetReceipt(w, r, chi.URLParam(r, "id"))
		})
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
