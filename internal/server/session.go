package server

import (
	"net/http"
	"strings"

	"github.com/desertthunder/songbook/internal/auth"
)

// SessionHandler exchanges ID tokens for session cookies.
type SessionHandler struct {
	auth   *auth.Service
	secure bool
}

// Routes implements [Handler].
func (h *SessionHandler) Routes() []Route {
	return []Route{
		{http.MethodPost, "/api/session", http.HandlerFunc(h.create)},
		{http.MethodDelete, "/api/session", http.HandlerFunc(h.destroy)},
	}
}

type sessionRequest struct {
	IDToken string `json:"idToken"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.IDToken) == "" {
		writeError(w, http.StatusBadRequest, "Missing idToken.")
		return
	}

	session, err := h.auth.CreateSession(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	auth.SetSessionCookie(w, session, h.secure)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "admin": session.Identity.Admin})
}

func (h *SessionHandler) destroy(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
