package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/interpolis/tourpoule/internal/auth"
	"github.com/interpolis/tourpoule/internal/services"
)

// ==================== Participant sign-in ====================

func (h *Handlers) handleParticipantLogin(w http.ResponseWriter, r *http.Request) {
	if h.Login == nil {
		h.respondError(w, NotFound("Sign-in is not configured"))
		return
	}
	http.Redirect(w, r, h.Login.LoginURL(), http.StatusFound)
}

// handleParticipantCallback completes the identity provider redirect. Any
// provider failure leaves the user signed out.
func (h *Handlers) handleParticipantCallback(w http.ResponseWriter, r *http.Request) {
	if h.Login == nil {
		h.respondError(w, NotFound("Sign-in is not configured"))
		return
	}
	q := r.URL.Query()
	token, _, err := h.Login.Callback(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		h.logger().Warn("participant sign-in failed", "error", err)
		h.respondError(w, Unauthorized("Sign-in failed"))
		return
	}
	auth.SetParticipantCookie(w, token)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handlers) handleParticipantLogout(w http.ResponseWriter, r *http.Request) {
	if h.Login != nil {
		if cookie, err := r.Cookie(auth.ParticipantCookieName); err == nil {
			h.Login.Logout(cookie.Value)
		}
	}
	auth.ClearParticipantCookie(w)
	respondSuccess(w, "logged out")
}

// requireParticipant guards the me routes. Without an identity provider
// every request is unauthorized.
func (h *Handlers) requireParticipant(next http.Handler) http.Handler {
	if h.Identity == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.respondError(w, Unauthorized("Sign-in is not configured"))
		})
	}
	return h.Identity.RequireParticipant(next)
}

// ==================== Me ====================

func (h *Handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	resp := MeResponse{Subject: id.Subject, Email: id.Email, Name: id.Name}

	p, err := h.Teams.GetBySubject(r.Context(), id.Subject)
	switch {
	case stderrors.Is(err, services.ErrNotRegistered):
		respondOK(w, resp)
		return
	case err != nil:
		h.respondError(w, err)
		return
	}
	team, err := h.teamResponse(r, p.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp.Registered = true
	resp.Team = team
	respondOK(w, resp)
}

func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	var req services.ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.Email == "" {
		req.Email = id.Email
	}
	p, err := h.Teams.Register(r.Context(), id.Subject, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, p)
}

func (h *Handlers) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	pid, ok := h.myTeam(w, r)
	if !ok {
		return
	}
	var req services.ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	p, err := h.Teams.UpdateProfile(r.Context(), pid, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, p)
}

func (h *Handlers) handleSetMyRoster(w http.ResponseWriter, r *http.Request) {
	if pid, ok := h.myTeam(w, r); ok {
		h.setRoster(w, r, pid, false)
	}
}

func (h *Handlers) handleSetMySlot(w http.ResponseWriter, r *http.Request) {
	if pid, ok := h.myTeam(w, r); ok {
		h.setSlot(w, r, pid, false)
	}
}

func (h *Handlers) handleUploadMyAvatar(w http.ResponseWriter, r *http.Request) {
	if pid, ok := h.myTeam(w, r); ok {
		h.uploadAvatar(w, r, pid)
	}
}

// myTeam resolves the signed-in user's participant id, writing the error
// response when there is none.
func (h *Handlers) myTeam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, _ := auth.IdentityFromContext(r.Context())
	p, err := h.Teams.GetBySubject(r.Context(), id.Subject)
	if err != nil {
		h.respondError(w, err)
		return 0, false
	}
	return p.ID, true
}
