package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Provider registry
		r.Get("/providers", h.ListProviders)
		r.Get("/providers/accounts", h.ListAccounts)

		// Per-provider settings
		r.Put("/providers/{provider}/client-id", h.SetClientID)
		r.Put("/providers/{provider}/base-url", h.SetBaseURL)

		// Authentication
		r.Post("/providers/{provider}/device-flow", h.StartDeviceFlow)
		r.Post("/providers/{provider}/device-flow/complete", h.CompleteDeviceFlow)
		r.Post("/providers/{provider}/connect", h.Connect)
		r.Delete("/providers/{provider}/connection", h.Disconnect)

		// Repository operations
		r.Get("/providers/{provider}/repos", h.ListRepos)
		r.Post("/providers/{provider}/push", h.PushFiles)
		r.Post("/providers/{provider}/pull-requests", h.CreatePullRequest)

		// Skill marketplace
		r.Get("/marketplace/{provider}", h.ListSnippets)
		r.Get("/marketplace/{provider}/snippets/{id}", h.GetSnippet)
		r.Post("/marketplace/{provider}/publish", h.PublishSkill)
		r.Post("/marketplace/{provider}/import", h.ImportSnippet)

		// Agents
		r.Get("/agents", h.ListAgents)
		r.Post("/agents", h.CreateAgent)
		r.Get("/agents/{id}", h.GetAgent)
		r.Put("/agents/{id}", h.UpdateAgent)
		r.Delete("/agents/{id}", h.DeleteAgent)

		// Skills
		r.Get("/skills", h.ListSkills)
		r.Post("/skills", h.CreateSkill)
		r.Get("/skills/{id}", h.GetSkill)
		r.Put("/skills/{id}", h.UpdateSkill)
		r.Delete("/skills/{id}", h.DeleteSkill)
	})
}
