package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler, jwtSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(jwtSecret))

			r.Post("/projects", handler.startProject)
			r.Post("/projects/terminate", handler.terminateProject)
			r.Post("/projects/rate", handler.rate)
			r.Get("/projects/{projectKey}", handler.getProject)
			r.Get("/projects/{projectKey}/milestones", handler.listMilestones)
			r.Get("/projects/{projectKey}/dispute", handler.getDispute)

			r.Get("/parties/{partyID}/projects", handler.partyProjects)
			r.Get("/parties/{partyID}/rating", handler.partyRating)

			r.Post("/escrow/{projectKey}/deposits", handler.deposit)
			r.Post("/escrow/{projectKey}/withdrawals", handler.withdraw)
			r.Get("/escrow/{projectKey}/balance", handler.escrowBalance)
			r.Get("/escrow/{projectKey}/movements", handler.escrowMovements)

			r.Post("/milestones/start", handler.startMilestone)
			r.Post("/milestones/deliver", handler.deliverMilestone)
			r.Post("/milestones/accept", handler.acceptMilestone)
			r.Post("/milestones/reject", handler.rejectMilestone)
			r.Post("/milestones/adjust", handler.adjustMilestone)

			r.Post("/disputes/start", handler.startDispute)
			r.Post("/disputes/proposal/accept", handler.acceptProposal)
			r.Post("/disputes/proposal/reject", handler.rejectProposal)
			r.Post("/disputes/settle", handler.settleDispute)

			r.Put("/fees", handler.upsertFees)
			r.Get("/fees/{arbiterID}", handler.getFees)

			r.Get("/registry/{component}", handler.resolveComponent)
		})
	})
	return r
}
