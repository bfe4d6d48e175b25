package handlers

import (
	"io"
	"net/http"

	"github.com/interpolis/tourpoule/internal/auth"
	"github.com/interpolis/tourpoule/internal/avatars"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/services"
)

// ==================== Session ====================

func (h *Handlers) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	token, ok := h.Auth.Login(req.Password)
	if !ok {
		h.logger().Warn("admin login failed", "remote_addr", r.RemoteAddr)
		h.respondError(w, Unauthorized("Invalid password"))
		return
	}
	auth.SetSessionCookie(w, token)
	respondSuccess(w, "logged in")
}

func (h *Handlers) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Auth.Logout(cookie.Value)
	}
	auth.ClearSessionCookie(w)
	respondSuccess(w, "logged out")
}

// ==================== Riders ====================

func (h *Handlers) handleGetRider(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	rider, err := h.Riders.GetRider(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, rider)
}

func (h *Handlers) handleCreateRider(w http.ResponseWriter, r *http.Request) {
	var req RiderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	rider, err := h.Riders.CreateRider(r.Context(), req.toModel(0))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, rider)
}

func (h *Handlers) handleUpdateRider(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req RiderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.Riders.UpdateRider(r.Context(), req.toModel(id)); err != nil {
		h.respondError(w, err)
		return
	}
	respondSuccess(w, "rider updated")
}

func (h *Handlers) handleDeleteRider(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.Riders.DeleteRider(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	respondDeleted(w)
}

// ==================== Stages ====================

func (h *Handlers) handleCreateStage(w http.ResponseWriter, r *http.Request) {
	var req StageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	stage, err := h.Stages.CreateStage(r.Context(), req.toModel(0))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, stage)
}

func (h *Handlers) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req StageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.Stages.UpdateStage(r.Context(), req.toModel(id)); err != nil {
		h.respondError(w, err)
		return
	}
	respondSuccess(w, "stage updated")
}

func (h *Handlers) handleDeleteStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.Stages.DeleteStage(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	respondDeleted(w)
}

// ==================== Results ====================

// handleValidateStage parses pasted results. Unmatched lines are part of
// a 200 response, not an error.
func (h *Handlers) handleValidateStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.Import.Validate(r.Context(), id, req.ResultsText)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleCommitStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req services.CommitRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.Import.Commit(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleCommitFinal(w http.ResponseWriter, r *http.Request) {
	var req services.FinalRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.Import.CommitFinal(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleActivateReserves(w http.ResponseWriter, r *http.Request) {
	var req services.ActivateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.respondError(w, err)
			return
		}
	}
	result, err := h.Reserves.Activate(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleRecomputeAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.Scoring.RecomputeAll(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleRecomputeStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.Scoring.RecomputeStage(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	respondSuccess(w, "stage recomputed")
}

func (h *Handlers) handleRecomputeFinal(w http.ResponseWriter, r *http.Request) {
	applied, err := h.Scoring.RecomputeFinal(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, map[string]bool{"ok": true, "finalApplied": applied})
}

// ==================== Rules ====================

func (h *Handlers) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Rules.ListRules(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, rules)
}

func (h *Handlers) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	rule, err := h.Rules.CreateRule(r.Context(), req.toModel(0))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, rule)
}

func (h *Handlers) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req RuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.Rules.UpdateRule(r.Context(), req.toModel(id)); err != nil {
		h.respondError(w, err)
		return
	}
	respondSuccess(w, "rule updated")
}

func (h *Handlers) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.Rules.DeleteRule(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	respondDeleted(w)
}

// ==================== Participants ====================

func (h *Handlers) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.Teams.ListParticipants(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, participants)
}

func (h *Handlers) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	team, err := h.teamResponse(r, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, team)
}

func (h *Handlers) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req services.ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	p, err := h.Teams.CreateParticipant(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, p)
}

func (h *Handlers) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req services.ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	p, err := h.Teams.UpdateProfile(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, p)
}

func (h *Handlers) handleDeleteParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.Teams.DeleteParticipant(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	respondDeleted(w)
}

func (h *Handlers) handleAdminSetRoster(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.setRoster(w, r, id, true)
}

func (h *Handlers) handleAdminSetSlot(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.setSlot(w, r, id, true)
}

func (h *Handlers) handleSetRiderState(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	riderID, err := parseIntParam(r, "riderID")
	if err != nil {
		h.respondError(w, err)
		return
	}
	var req RiderStateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	tr, err := h.Teams.SetRiderState(r.Context(), id, riderID, req.State)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, tr)
}

func (h *Handlers) handleAdminUploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.uploadAvatar(w, r, id)
}

// ==================== Settings ====================

func (h *Handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.AllSettings(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, settings)
}

func (h *Handlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	err := h.Settings.UpdateSettings(r.Context(), services.Settings{
		RegistrationOpen: req.RegistrationOpen,
		RosterLocked:     req.RosterLocked,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondSuccess(w, "settings updated")
}

// ==================== Shared roster helpers ====================

func (h *Handlers) teamResponse(r *http.Request, id int) (*TeamResponse, error) {
	p, err := h.Teams.GetParticipant(r.Context(), id)
	if err != nil {
		return nil, err
	}
	roster, err := h.Teams.Roster(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if roster == nil {
		roster = []models.TeamRider{}
	}
	return &TeamResponse{Participant: p, ShareURL: h.Teams.ShareURL(p), Roster: roster}, nil
}

func (h *Handlers) setRoster(w http.ResponseWriter, r *http.Request, id int, asAdmin bool) {
	var req services.RosterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	roster, err := h.Teams.SetRoster(r.Context(), id, req, asAdmin)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, RosterResponse{OK: true, Roster: roster})
}

func (h *Handlers) setSlot(w http.ResponseWriter, r *http.Request, id int, asAdmin bool) {
	var req services.SlotRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	roster, err := h.Teams.SetSlot(r.Context(), id, req, asAdmin)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, RosterResponse{OK: true, Roster: roster})
}

// uploadAvatar reads the raw image body. Storage failures come back as a
// warning in a 200 response.
func (h *Handlers) uploadAvatar(w http.ResponseWriter, r *http.Request, id int) {
	data, err := io.ReadAll(io.LimitReader(r.Body, avatars.MaxSize+1))
	if err != nil {
		h.respondError(w, BadRequest("Could not read upload"))
		return
	}
	if len(data) == 0 {
		h.respondError(w, BadRequest("Request body is empty"))
		return
	}
	result, err := h.Teams.UploadAvatar(r.Context(), id, data)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}
