package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/services"
)

// ==================== Standings & Stats ====================

func (h *Handlers) handleStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.Standings.Standings(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, standings)
}

func (h *Handlers) handleStageLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	board, err := h.Standings.StageLeaderboard(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, board)
}

func (h *Handlers) handlePopularRiders(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Standings.PopularRiders(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, rows)
}

func (h *Handlers) handleTopRiders(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntQuery(r, "limit", services.DefaultTopRiders)
	if err != nil {
		h.respondError(w, err)
		return
	}
	rows, err := h.Standings.TopRiders(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, rows)
}

// ==================== Teams ====================

func (h *Handlers) handleTeam(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	detail, err := h.Standings.Team(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, detail)
}

// handleSharedTeam resolves the public share link of a team
func (h *Handlers) handleSharedTeam(w http.ResponseWriter, r *http.Request) {
	p, err := h.Teams.GetByPublicID(r.Context(), chi.URLParam(r, "publicID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	detail, err := h.Standings.Team(r.Context(), p.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, detail)
}

func (h *Handlers) handleTeamQR(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	png, err := h.Teams.ShareQR(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondPNG(w, png)
}

func (h *Handlers) handleCompare(w http.ResponseWriter, r *http.Request) {
	a, errA := strconv.Atoi(r.URL.Query().Get("a"))
	b, errB := strconv.Atoi(r.URL.Query().Get("b"))
	if errA != nil || errB != nil || a < 1 || b < 1 {
		h.respondError(w, BadRequest("Query parameters a and b must be team ids"))
		return
	}
	cmp, err := h.Standings.Compare(r.Context(), a, b)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, cmp)
}

// ==================== Race ====================

func (h *Handlers) handleListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.Stages.ListStages(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, stages)
}

func (h *Handlers) handleStageResults(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	stage, err := h.Stages.GetStage(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	results, jerseys, err := h.Stages.StageResults(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, StageResultsResponse{Stage: stage, Results: results, Jerseys: jerseys})
}

func (h *Handlers) handleListRiders(w http.ResponseWriter, r *http.Request) {
	riders, err := h.Riders.ListRiders(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, riders)
}

// handleRiderPhoto proxies the rider's photo so clients never hit the
// upstream host directly
func (h *Handlers) handleRiderPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	photo, err := h.Riders.GetRiderPhoto(r.Context(), id)
	if err != nil {
		if errors.KindOf(err) == errors.ErrInternal {
			h.logger().Warn("rider photo unavailable", "rider_id", id, "error", err)
			err = NotFound("Photo unavailable")
		}
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(photo.Data)
}

func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	open, err := h.Settings.IsRegistrationOpen(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	locked, err := h.Settings.IsRosterLocked(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, StatusResponse{RegistrationOpen: open, RosterLocked: locked})
}
