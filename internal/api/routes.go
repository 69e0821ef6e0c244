package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", OrgHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.health.HandleHealth)
	r.Get("/health/ready", h.health.HandleReadiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(OrgContextMiddleware)

		r.Route("/contacts", func(r chi.Router) {
			r.Post("/", h.SaveContact)
			r.Get("/", h.ListContacts)
			r.Get("/{contactId}", h.GetContact)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/", h.ListEvents)
			r.Route("/{eventId}", func(r chi.Router) {
				r.Get("/", h.GetEvent)
				r.Get("/stages", h.GetEventStages)
				r.Put("/stages", h.UpdateEventStages)

				r.Get("/pipeline", h.ListPipeline)
				r.Get("/pipeline/summary", h.PipelineSummary)
				r.Post("/pipeline/push", h.PushToPipeline)
				r.Post("/pipeline/push-all", h.PushAllToPipeline)
				r.Post("/pipeline/push-by-tag", h.PushByTagToPipeline)

				r.Get("/attendees", h.ListAttendees)
				r.Post("/attendees/export", h.ExportRoster)
				r.Post("/attendees/{contactId}/check-in", h.CheckInAttendee)
			})
		})

		r.Route("/pipeline/{pipelineId}", func(r chi.Router) {
			r.Get("/", h.GetPipelineRecord)
			r.Patch("/", h.PatchPipelineRecord)
			r.Post("/graduate", h.GraduatePipelineRecord)
		})
	})

	return r
}
