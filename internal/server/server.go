package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/songbook/internal/auth"
	"github.com/desertthunder/songbook/internal/listing"
	"github.com/desertthunder/songbook/internal/metrics"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
	"github.com/desertthunder/songbook/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Route is one method and path pattern served by a [Handler].
type Route struct {
	Method  string
	Path    string
	Handler http.Handler
}

// Handler groups related endpoints. Implementations list their routes so the
// route table stays next to the handler code.
type Handler interface {
	Routes() []Route
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route of a Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// CategoryReader is the read side of the category index.
type CategoryReader interface {
	GetCategory(ctx context.Context, field models.Field) (*models.CategoryIndex, error)
	ListCategories(ctx context.Context) ([]*models.CategoryIndex, error)
}

// Searcher resolves a full-text query to song ids.
type Searcher interface {
	Search(ctx context.Context, input string, limit int) ([]string, error)
}

// Deps are the collaborators of the HTTP API. Store, Index and Logger are
// required; nil Auth disables sessions, playlists and admin routes; nil Search
// falls back to substring matching.
type Deps struct {
	Store    store.Store
	Index    CategoryReader
	Search   Searcher
	Auth     *auth.Service
	Importer *tasks.Importer
	Metrics  *metrics.Observer
	OAuth    *oauth2.Config
	Logger   *log.Logger

	// Listing sets the default title locale of song listings.
	Listing      listing.Options
	SecureCookie bool
}

// Server is the songbook HTTP API.
type Server struct {
	router *MuxRouter
	http   *http.Server
	logger *log.Logger
}

// New builds the router with every route and the middleware stack.
func New(cfg shared.ServerConfig, deps Deps) *Server {
	router := NewMuxRouter()
	router.Use(Recover(deps.Logger), Logging(deps.Logger))
	if deps.Metrics != nil {
		router.Use(Metrics(deps.Metrics))
	}
	if cfg.RateLimit > 0 {
		router.Use(RateLimit(cfg.RateLimit, cfg.Burst))
	}

	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	if deps.Metrics != nil {
		router.Handle(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	router.Handler(&SongsHandler{deps: deps})
	if deps.Auth != nil {
		router.Handler(&SessionHandler{auth: deps.Auth, secure: deps.SecureCookie})
		router.Handler(&PlaylistsHandler{deps: deps})
		router.Handler(&AdminHandler{deps: deps})
		if deps.OAuth != nil {
			router.Handler(NewOAuthHandler(deps.OAuth, deps.Auth, deps.SecureCookie, deps.Logger))
		}
	}

	return &Server{
		router: router,
		logger: deps.Logger,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return s.http.Shutdown(shutdownCtx)
}
