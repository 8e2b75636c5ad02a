// Package auth verifies identity tokens and manages session cookies.
//
// Sign-in happens at an external identity provider, which issues an ID token (an
// HS256 JWT sharing IDTokenSecret). POST /api/session exchanges a verified ID
// token for a session JWT signed with SessionSecret and stored in the
// [SessionCookieName] cookie. The admin custom claim lives on the user record;
// sessions copy it when minted.
//
// Revoking a user sets TokensValidAfter; any token issued earlier fails
// verification when revocation is checked.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

const (
	// SessionCookieName is the session cookie.
	SessionCookieName = "songapp_session"
	// SessionMaxAge is the lifetime of a session.
	SessionMaxAge = 5 * 24 * time.Hour

	sessionIssuer = "songbook"
	leeway        = 30 * time.Second
)

// Claims are the JWT claims of ID and session tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Identity is a verified caller.
type Identity struct {
	UID      string
	Email    string
	Name     string
	Admin    bool
	IssuedAt time.Time
}

func (c *Claims) identity() *Identity {
	id := &Identity{UID: c.Subject, Email: c.Email, Name: c.Name, Admin: c.Admin}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	return id
}

// Service verifies tokens against the user store.
type Service struct {
	users         store.UserStore
	idSecret      []byte
	sessionSecret []byte
	issuer        string
	audience      string
	now           func() time.Time
	logger        *log.Logger
}

// New creates a Service from the auth config section.
func New(cfg shared.AuthConfig, users store.UserStore, logger *log.Logger) (*Service, error) {
	if cfg.IDTokenSecret == "" || cfg.SessionSecret == "" {
		return nil, fmt.Errorf("%w: auth.id_token_secret and auth.session_secret are required", shared.ErrMissingConfig)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{
		users:         users,
		idSecret:      []byte(cfg.IDTokenSecret),
		sessionSecret: []byte(cfg.SessionSecret),
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		now:           time.Now,
		logger:        logger,
	}, nil
}

func (s *Service) parse(raw string, secret []byte, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", shared.ErrInvalidToken)
	}
	return claims, nil
}

// checkRevoked rejects tokens issued before the user's revocation time and
// refreshes the admin claim from the user record.
func (s *Service) checkRevoked(ctx context.Context, id *Identity) error {
	u, err := s.users.GetUser(ctx, id.UID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !u.TokensValidAfter.IsZero() && id.IssuedAt.Before(u.TokensValidAfter) {
		return fmt.Errorf("%w: user %s", shared.ErrSessionRevoked, id.UID)
	}
	id.Admin = u.Admin
	return nil
}

// VerifyIDToken verifies a provider ID token.
func (s *Service) VerifyIDToken(ctx context.Context, raw string, checkRevoked bool) (*Identity, error) {
	var opts []jwt.ParserOption
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims, err := s.parse(raw, s.idSecret, opts...)
	if err != nil {
		return nil, err
	}

	id := claims.identity()
	if checkRevoked {
		if err := s.checkRevoked(ctx, id); err != nil {
			return nil, err
		}
	}
	return id, nil
}

// Session is a minted session cookie value.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  *Identity
}

// CreateSession verifies idToken, records the user and mints a session carrying
// the user's admin claim.
func (s *Service) CreateSession(ctx context.Context, idToken string) (*Session, error) {
	id, err := s.VerifyIDToken(ctx, idToken, true)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpsertUser(ctx, &models.User{UID: id.UID, Email: id.Email, DisplayName: id.Name}); err != nil {
		return nil, fmt.Errorf("failed to record user: %w", err)
	}
	u, err := s.users.GetUser(ctx, id.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	id.Admin = u.Admin

	now := s.now()
	expires := now.Add(SessionMaxAge)
	claims := Claims{
		Email: id.Email,
		Name:  id.Name,
		Admin: id.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.sessionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	id.IssuedAt = now
	s.logger.Info("session created", "uid", id.UID, "admin", id.Admin)
	return &Session{Token: token, ExpiresAt: expires, Identity: id}, nil
}

// VerifySession verifies a session cookie value. With checkRevoked the user
// record is consulted for revocation and the current admin claim.
func (s *Service) VerifySession(ctx context.Context, raw string, checkRevoked bool) (*Identity, error) {
	claims, err := s.parse(raw, s.sessionSecret, jwt.WithIssuer(sessionIssuer))
	if err != nil {
		return nil, err
	}

	id := claims.identity()
	if checkRevoked {
		if err := s.checkRevoked(ctx, id); err != nil {
			return nil, err
		}
	}
	return id, nil
}

// SetAdmin sets the admin custom claim. Existing sessions keep their claim until
// revoked or refreshed.
func (s *Service) SetAdmin(ctx context.Context, uid string, admin bool) error {
	if err := s.users.SetAdmin(ctx, uid, admin); err != nil {
		return err
	}
	s.logger.Info("admin claim updated", "uid", uid, "admin", admin)
	return nil
}

// Revoke invalidates every token issued to uid so far.
func (s *Service) Revoke(ctx context.Context, uid string) error {
	// JWT iat has second precision; tokens minted in the current second stay valid.
	at := s.now().Truncate(time.Second)
	if err := s.users.RevokeTokens(ctx, uid, at); err != nil {
		return err
	}
	s.logger.Info("tokens revoked", "uid", uid)
	return nil
}

// SignIDToken signs an ID token with the provider secret. It backs local
// development logins and tests.
func (s *Service) SignIDToken(uid, email, name string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.idSecret)
}
