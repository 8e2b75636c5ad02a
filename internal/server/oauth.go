package server

import (
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/songbook/internal/auth"
	"github.com/desertthunder/songbook/internal/shared"
)

const (
	stateCookieName = "songapp_oauth_state"
	stateMaxAge     = 600
)

// OAuthHandler runs the OAuth2 authorization code login flow.
//
// The provider's id_token is exchanged for a session cookie exactly like a
// POST /api/session request.
type OAuthHandler struct {
	config *oauth2.Config
	auth   *auth.Service
	secure bool
	logger *log.Logger
}

// NewOAuthHandler creates a new OAuth handler with the given OAuth2 config.
func NewOAuthHandler(config *oauth2.Config, svc *auth.Service, secure bool, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{config: config, auth: svc, secure: secure, logger: logger}
}

// NewOAuthConfig builds the client configuration, or nil when the flow is disabled.
func NewOAuthConfig(cfg shared.OAuthConfig) *oauth2.Config {
	if !cfg.Enabled() {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}
}

// Routes implements [Handler].
func (h *OAuthHandler) Routes() []Route {
	return []Route{
		{http.MethodGet, "/auth/login", http.HandlerFunc(h.login)},
		{http.MethodGet, "/auth/callback", http.HandlerFunc(h.callback)},
	}
}

// login redirects to the provider. The state token is kept in a short-lived
// cookie for CSRF protection.
func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.config.AuthCodeURL(state), http.StatusFound)
}

// callback validates the state parameter, exchanges the authorization code and
// mints a session from the returned id_token.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || q.Get("state") != cookie.Value {
		writeError(w, http.StatusBadRequest, "Invalid state parameter.")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/auth", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		h.logger.Warn("authorization failed", "error", q.Get("error"), "description", q.Get("error_description"))
		writeError(w, http.StatusBadRequest, "Authorization failed.")
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "Token exchange failed.")
		return
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		h.logger.Error("token response has no id_token")
		writeError(w, http.StatusBadGateway, "Provider returned no id_token.")
		return
	}

	session, err := h.auth.CreateSession(r.Context(), idToken)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidToken) && !errors.Is(err, shared.ErrSessionRevoked) {
			h.logger.Error("session creation failed", "error", err)
		}
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	auth.SetSessionCookie(w, session, h.secure)
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Signed in</title>
    <meta http-equiv="refresh" content="2; url=/">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #7c3aed; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Signed in</h1>
        <p>Welcome back%s. Redirecting to the songbook...</p>
    </div>
</body>
</html>
`, html.EscapeString(displayName(session.Identity)))
}

func displayName(id *auth.Identity) string {
	switch {
	case id.Name != "":
		return ", " + id.Name
	case id.Email != "":
		return ", " + id.Email
	default:
		return ""
	}
}
