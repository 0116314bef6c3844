package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Post("/", apiHandler.MessageHandler)

	r.Get("/weekly-summary", apiHandler.WeeklySummaryHandler)
	r.Post("/weekly-summary", apiHandler.WeeklySummaryHandler)

	r.Group(func(r chi.Router) {
		r.Use(apiHandler.AdminAuthMiddleware)
		r.Get("/history", apiHandler.HistoryHandler)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}
