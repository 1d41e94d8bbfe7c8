package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"imageBatch/api/middleware"
)

func NewRouter(h *RequestHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.TraceID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Post("/upload", h.Upload)
	r.Get("/status/{requestID}", h.Status)

	return r
}
