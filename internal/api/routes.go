package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/contentgen/contentgen-backend/internal/auth"
)

func (h *Handler) Routes(m *Middleware, verifier auth.Verifier, corsOrigins []string, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))

	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	authn := auth.Middleware(verifier)

	r.Route("/v1", func(r chi.Router) {
		// Streaming endpoints sit outside the timeout and compression
		// wrappers: TimeoutHandler breaks the WebSocket hijack and
		// buffering breaks SSE.
		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Get("/stream", h.sseHandler.HandleSSE)
			r.Get("/ws", h.wsHub.HandleWebSocket)
		})

		r.Group(func(r chi.Router) {
			r.Use(m.Compress)
			r.Use(m.Timeout(60 * time.Second))
			r.Use(authn)

			// Draft editing sessions
			r.Route("/drafts", func(r chi.Router) {
				r.Post("/", h.CreateDraft)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetDraft)
					r.Patch("/", h.UpdateDraft)
					r.Delete("/", h.DeleteDraft)

					r.Post("/generate", h.Generate)

					r.Route("/hooks", func(r chi.Router) {
						r.Post("/select", h.SelectHook)
						r.Post("/next", h.NextHook)
						r.Post("/previous", h.PreviousHook)
					})

					r.Route("/regenerate", func(r chi.Router) {
						r.Post("/text", h.RegenerateText)
						r.Post("/image", h.RegenerateImage)
						r.Post("/all", h.RegenerateAll)
					})

					r.Route("/image", func(r chi.Router) {
						r.Put("/", h.UpdateImage)
						r.Post("/upload", h.UploadImage)
						r.Delete("/", h.RemoveImage)
					})

					r.Post("/save", h.SaveDraft)
					r.Post("/schedule", h.ScheduleDraft)
					r.Post("/publish", h.PublishDraft)
				})
			})

			r.Get("/previews/{handle}", h.GetPreview)

			// Content library
			r.Route("/content", func(r chi.Router) {
				r.Get("/", h.ListContent)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetContent)
					r.Patch("/", h.UpdateContent)
					r.Delete("/", h.DeleteContent)
				})
			})

			// Workspace settings
			r.Route("/companies", func(r chi.Router) {
				r.Get("/", h.ListCompanies)
				r.Post("/", h.CreateCompany)
				r.Patch("/{id}", h.UpdateCompany)
				r.Delete("/{id}", h.DeleteCompany)
			})

			r.Route("/competitors", func(r chi.Router) {
				r.Get("/", h.ListCompetitors)
				r.Post("/", h.CreateCompetitor)
				r.Patch("/{id}", h.UpdateCompetitor)
				r.Delete("/{id}", h.DeleteCompetitor)
			})

			r.Route("/integrations", func(r chi.Router) {
				r.Get("/", h.ListIntegrations)
				r.Post("/", h.UpsertIntegration)
				r.Delete("/{platform}", h.DeleteIntegration)
			})

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", h.GetProfile)
				r.Put("/", h.UpsertProfile)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", h.ListDocuments)
				r.Post("/", h.UploadDocument)
				r.Get("/{name}", h.GetDocument)
				r.Delete("/{name}", h.DeleteDocument)
			})
		})
	})

	return r
}
