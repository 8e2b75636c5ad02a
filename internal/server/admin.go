package server

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/desertthunder/songbook/internal/listing"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
	"github.com/desertthunder/songbook/internal/tasks"
)

// AdminHandler serves catalog management. Every route requires the admin claim.
type AdminHandler struct {
	deps Deps
}

// Routes implements [Handler].
func (h *AdminHandler) Routes() []Route {
	admin := h.deps.Auth.RequireAdmin
	return []Route{
		{http.MethodGet, "/api/admin/initial", admin(http.HandlerFunc(h.initial))},
		{http.MethodPost, "/api/admin/songs", admin(http.HandlerFunc(h.createSong))},
		{http.MethodGet, "/api/admin/songs/{id}", admin(http.HandlerFunc(h.getSong))},
		{http.MethodPut, "/api/admin/songs/{id}", admin(http.HandlerFunc(h.updateSong))},
		{http.MethodDelete, "/api/admin/songs/{id}", admin(http.HandlerFunc(h.deleteSong))},
		{http.MethodPost, "/api/admin/import", admin(http.HandlerFunc(h.importSongs))},
		{http.MethodPut, "/api/admin/users/{uid}/admin", admin(http.HandlerFunc(h.setAdmin))},
		{http.MethodPost, "/api/admin/users/{uid}/revoke", admin(http.HandlerFunc(h.revoke))},
	}
}

// initial returns every song plus the sorted unique values of each category field.
func (h *AdminHandler) initial(w http.ResponseWriter, r *http.Request) {
	songs, err := h.deps.Store.ListSongs(r.Context(), store.SongFilter{})
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	cats, err := uniqueCategories(r, h.deps.Index)
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}

	listing.Sort(songs, h.deps.Listing)
	if songs == nil {
		songs = []*models.Song{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"uniqueCategories": cats, "allSongs": songs})
}

func (h *AdminHandler) createSong(w http.ResponseWriter, r *http.Request) {
	var song models.Song
	if err := decodeJSON(w, r, &song); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	song.ID = ""
	if err := h.deps.Store.CreateSong(r.Context(), &song); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Song added successfully!", "song": song})
}

func (h *AdminHandler) getSong(w http.ResponseWriter, r *http.Request) {
	song, err := h.deps.Store.GetSong(r.Context(), pathVar(r, "id"))
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

func (h *AdminHandler) updateSong(w http.ResponseWriter, r *http.Request) {
	var song models.Song
	if err := decodeJSON(w, r, &song); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	song.ID = pathVar(r, "id")
	if err := h.deps.Store.UpdateSong(r.Context(), &song); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Song updated successfully!", "song": song})
}

func (h *AdminHandler) deleteSong(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Store.DeleteSong(r.Context(), pathVar(r, "id")); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Song deleted."})
}

type importResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  []string `json:"failed"`
}

// importSongs accepts a CSV body (text/csv) or a JSON array of row objects.
func (h *AdminHandler) importSongs(w http.ResponseWriter, r *http.Request) {
	if h.deps.Importer == nil {
		writeError(w, http.StatusNotImplemented, "Import is not configured.")
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		rows []tasks.Row
		err  error
	)
	switch mediaType {
	case "text/csv":
		rows, err = tasks.DecodeCSV(body)
	default:
		rows, err = tasks.DecodeJSON(body)
	}
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}

	result, err := h.deps.Importer.Import(r.Context(), nil, rows, tasks.ImportOpts{})
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}

	failed := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, f.Error())
	}
	writeJSON(w, http.StatusOK, importResponse{
		Success: true,
		Message: fmt.Sprintf("Import complete! %d songs imported successfully.", result.Created+result.Updated),
		Created: result.Created,
		Updated: result.Updated,
		Failed:  failed,
	})
}

type adminClaimRequest struct {
	Admin *bool `json:"admin"`
}

func (h *AdminHandler) setAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminClaimRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Admin == nil {
		fail(w, h.deps.Logger, fmt.Errorf("%w: admin must be true or false", shared.ErrInvalidInput))
		return
	}
	uid := pathVar(r, "uid")
	if err := h.deps.Auth.SetAdmin(r.Context(), uid, *req.Admin); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "uid": uid, "admin": *req.Admin})
}

func (h *AdminHandler) revoke(w http.ResponseWriter, r *http.Request) {
	uid := pathVar(r, "uid")
	if err := h.deps.Auth.Revoke(r.Context(), uid); err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "uid": uid})
}
