package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/songbook/internal/auth"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
)

// PlaylistsHandler serves the signed-in user's playlists.
type PlaylistsHandler struct {
	deps Deps
}

// Routes implements [Handler]. Every route requires a user.
func (h *PlaylistsHandler) Routes() []Route {
	user := h.deps.Auth.RequireUser
	return []Route{
		{http.MethodGet, "/api/playlists", user(http.HandlerFunc(h.list))},
		{http.MethodPost, "/api/playlists", user(http.HandlerFunc(h.create))},
		{http.MethodGet, "/api/playlists/{id}", user(http.HandlerFunc(h.get))},
		{http.MethodPatch, "/api/playlists/{id}", user(http.HandlerFunc(h.rename))},
		{http.MethodDelete, "/api/playlists/{id}", user(http.HandlerFunc(h.delete))},
		{http.MethodPost, "/api/playlists/{id}/songs", user(http.HandlerFunc(h.addSong))},
		{http.MethodDelete, "/api/playlists/{id}/songs", user(http.HandlerFunc(h.removeSong))},
	}
}

type playlistSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	SongIDs []string `json:"songIds"`
}

func summarize(p *models.Playlist) playlistSummary {
	ids := p.SongIDs
	if ids == nil {
		ids = []string{}
	}
	return playlistSummary{ID: p.ID, Name: p.Name, SongIDs: ids}
}

// owned loads a playlist and checks that uid owns it.
func (h *PlaylistsHandler) owned(ctx context.Context, id, uid string) (*models.Playlist, error) {
	p, err := h.deps.Store.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerUID != uid {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrForbidden, id)
	}
	return p, nil
}

func (h *PlaylistsHandler) failOwned(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeError(w, http.StatusNotFound, "Playlist not found.")
	case errors.Is(err, shared.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden.")
	default:
		fail(w, h.deps.Logger, err)
	}
}

func caller(r *http.Request) *auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (h *PlaylistsHandler) list(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.deps.Store.ListPlaylists(r.Context(), caller(r).UID)
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}

	out := make([]playlistSummary, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, summarize(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": out})
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *PlaylistsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}

	p := &models.Playlist{OwnerUID: caller(r).UID, Name: req.Name}
	if err := h.deps.Store.CreatePlaylist(r.Context(), p); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "playlist": summarize(p)})
}

func (h *PlaylistsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.owned(r.Context(), pathVar(r, "id"), caller(r).UID)
	if err != nil {
		h.failOwned(w, err)
		return
	}

	songs, err := h.deps.Store.GetSongsByIDs(r.Context(), p.SongIDs)
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	if songs == nil {
		songs = []*models.Song{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlist": summarize(p), "songs": songs})
}

func (h *PlaylistsHandler) rename(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}

	p, err := h.owned(r.Context(), pathVar(r, "id"), caller(r).UID)
	if err != nil {
		h.failOwned(w, err)
		return
	}
	if err := h.deps.Store.RenamePlaylist(r.Context(), p.ID, req.Name); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": models.SanitizePlaylistName(req.Name)})
}

func (h *PlaylistsHandler) delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.owned(r.Context(), pathVar(r, "id"), caller(r).UID)
	if err != nil {
		h.failOwned(w, err)
		return
	}
	if err := h.deps.Store.DeletePlaylist(r.Context(), p.ID); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type songRequest struct {
	SongID string `json:"songId"`
}

// songMutation decodes the songId body, checks ownership and applies apply.
func (h *PlaylistsHandler) songMutation(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id, songID string) error) {
	var req songRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.SongID) == "" {
		writeError(w, http.StatusBadRequest, "Missing songId.")
		return
	}

	p, err := h.owned(r.Context(), pathVar(r, "id"), caller(r).UID)
	if err != nil {
		h.failOwned(w, err)
		return
	}
	if err := apply(r.Context(), p.ID, strings.TrimSpace(req.SongID)); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *PlaylistsHandler) addSong(w http.ResponseWriter, r *http.Request) {
	h.songMutation(w, r, h.deps.Store.AddPlaylistSong)
}

func (h *PlaylistsHandler) removeSong(w http.ResponseWriter, r *http.Request) {
	h.songMutation(w, r, h.deps.Store.RemovePlaylistSong)
}
