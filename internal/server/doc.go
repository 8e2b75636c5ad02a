// Package server provides the songbook HTTP API: routing, middleware, and handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [MuxRouter] implementation uses gorilla/mux internally for method matching and path variables.
//
// # Handler Interface
//
// Handlers implement the [Handler] interface, which lists their [Route] values.
// This keeps the route table of a group of endpoints next to their implementation:
//   - [SongsHandler] : public listings, categories, and search
//   - [SessionHandler] : ID token to session cookie exchange
//   - [PlaylistsHandler] : per-user playlists (signed in)
//   - [AdminHandler] : catalog management and claims (admin)
//   - [OAuthHandler] : optional authorization code login
//
// # Errors
//
// Handlers map sentinel errors from the shared package to status codes.
// Not found is 404, forbidden is 403, invalid input is 400, and anything unexpected is a logged 500.
// Bodies are always JSON objects with an "error" key.
package server
