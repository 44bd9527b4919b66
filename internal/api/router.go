package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"llmspub/internal/app"
)

// NewRouter builds the chi router and registers the API handlers. All
// /api routes sit behind the bearer-token gate when a token is configured.
func NewRouter(a *app.App) http.Handler {
	h := NewHandlers(a)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(a.APIToken()))

		r.Post("/publish", h.Publish)
		r.Post("/generate", h.Generate)
		r.Get("/files/check", h.CheckFiles)

		r.Get("/history", h.ListHistory)
		r.Get("/history/{id}", h.GetHistoryEntry)
		r.Delete("/history/{id}", h.DeleteHistoryEntry)

		r.Get("/schedule", h.GetSchedule)
		r.Put("/schedule", h.SaveSchedule)
		r.Post("/schedule/pause", h.PauseSchedule)
		r.Post("/schedule/resume", h.ResumeSchedule)
		r.Post("/schedule/cancel", h.CancelSchedule)
		r.Get("/schedule/runs", h.ListRuns)

		r.Post("/verify/send", h.SendVerification)
		r.Post("/verify/confirm", h.ConfirmVerification)
	})

	return r
}

// bearerAuth rejects requests whose Authorization header does not carry the
// configured token. An empty token disables the gate, for local use.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
