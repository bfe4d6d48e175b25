package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	// WebSocket, outside the timeout middleware
	if h.WS != nil {
		r.Get("/ws", h.WS.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Health
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			respondOK(w, map[string]bool{"ok": true})
		})

		// Public API
		r.Get("/api/status", h.handleStatus)
		r.Get("/api/standings", h.handleStandings)
		r.Get("/api/stages", h.handleListStages)
		r.Get("/api/stages/{id}", h.handleStageResults)
		r.Get("/api/stages/{id}/leaderboard", h.handleStageLeaderboard)
		r.Get("/api/riders", h.handleListRiders)
		r.Get("/api/riders/{id}/photo", h.handleRiderPhoto)
		r.Get("/api/stats/riders/popular", h.handlePopularRiders)
		r.Get("/api/stats/riders/top", h.handleTopRiders)
		r.Get("/api/teams/compare", h.handleCompare)
		r.Get("/api/teams/{id}", h.handleTeam)
		r.Get("/api/teams/{id}/qr", h.handleTeamQR)
		r.Get("/api/share/{publicID}", h.handleSharedTeam)

		// Participant sign-in
		r.Get("/auth/login", h.handleParticipantLogin)
		r.Get("/auth/callback", h.handleParticipantCallback)
		r.Post("/auth/logout", h.handleParticipantLogout)

		// Me (participant session)
		r.Group(func(r chi.Router) {
			r.Use(h.requireParticipant)
			r.Get("/api/me", h.handleMe)
			r.Put("/api/me", h.handleUpdateMe)
			r.Post("/api/me/team", h.handleRegister)
			r.Put("/api/me/roster", h.handleSetMyRoster)
			r.Put("/api/me/roster/slot", h.handleSetMySlot)
			r.Post("/api/me/avatar", h.handleUploadMyAvatar)
		})

		// Admin session
		r.Post("/api/admin/login", h.handleAdminLogin)
		r.Post("/api/admin/logout", h.handleAdminLogout)

		// Admin API (protected)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuthAPI)

			// Riders
			r.Get("/api/admin/riders", h.handleListRiders)
			r.Post("/api/admin/riders", h.handleCreateRider)
			r.Get("/api/admin/riders/{id}", h.handleGetRider)
			r.Put("/api/admin/riders/{id}", h.handleUpdateRider)
			r.Delete("/api/admin/riders/{id}", h.handleDeleteRider)

			// Stages and results
			r.Get("/api/admin/stages", h.handleListStages)
			r.Post("/api/admin/stages", h.handleCreateStage)
			r.Put("/api/admin/stages/{id}", h.handleUpdateStage)
			r.Delete("/api/admin/stages/{id}", h.handleDeleteStage)
			r.Post("/api/admin/stages/{id}/validate", h.handleValidateStage)
			r.Post("/api/admin/stages/{id}/commit", h.handleCommitStage)
			r.Post("/api/admin/stages/{id}/recompute", h.handleRecomputeStage)
			r.Put("/api/admin/final-standings", h.handleCommitFinal)

			// Scoring
			r.Get("/api/admin/rules", h.handleListRules)
			r.Post("/api/admin/rules", h.handleCreateRule)
			r.Put("/api/admin/rules/{id}", h.handleUpdateRule)
			r.Delete("/api/admin/rules/{id}", h.handleDeleteRule)
			r.Post("/api/admin/recompute", h.handleRecomputeAll)
			r.Post("/api/admin/recompute/final", h.handleRecomputeFinal)

			// Participants and rosters
			r.Get("/api/admin/participants", h.handleListParticipants)
			r.Post("/api/admin/participants", h.handleCreateParticipant)
			r.Get("/api/admin/participants/{id}", h.handleGetParticipant)
			r.Put("/api/admin/participants/{id}", h.handleUpdateParticipant)
			r.Delete("/api/admin/participants/{id}", h.handleDeleteParticipant)
			r.Put("/api/admin/participants/{id}/roster", h.handleAdminSetRoster)
			r.Put("/api/admin/participants/{id}/roster/slot", h.handleAdminSetSlot)
			r.Put("/api/admin/participants/{id}/riders/{riderID}/state", h.handleSetRiderState)
			r.Post("/api/admin/participants/{id}/avatar", h.handleAdminUploadAvatar)
			r.Post("/api/admin/reserves/activate", h.handleActivateReserves)

			// Settings
			r.Get("/api/admin/settings", h.handleGetSettings)
			r.Put("/api/admin/settings", h.handleUpdateSettings)
		})
	})

	return r
}
