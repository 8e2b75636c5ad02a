package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/desertthunder/songbook/internal/listing"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/search"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

// SongsHandler serves the public catalog: listings, categories and search.
type SongsHandler struct {
	deps Deps
}

// Routes implements [Handler].
func (h *SongsHandler) Routes() []Route {
	return []Route{
		{http.MethodGet, "/api/songs", http.HandlerFunc(h.list)},
		{http.MethodGet, "/api/songs/{id}", http.HandlerFunc(h.get)},
		{http.MethodGet, "/api/categories", http.HandlerFunc(h.categories)},
		{http.MethodGet, "/api/categories/{field}", http.HandlerFunc(h.category)},
		{http.MethodGet, "/api/search", http.HandlerFunc(h.search)},
	}
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", shared.ErrInvalidInput, name)
	}
	return b, nil
}

func (h *SongsHandler) sortOptions(r *http.Request) (listing.Options, error) {
	opts := h.deps.Listing
	var err error
	if opts.ByBeat, err = boolParam(r, "sort_beat"); err != nil {
		return opts, err
	}
	if opts.ByKey, err = boolParam(r, "sort_key"); err != nil {
		return opts, err
	}
	if opts.MusicalKeys, err = boolParam(r, "musical"); err != nil {
		return opts, err
	}
	return opts, nil
}

type songsResponse struct {
	Songs []*models.Song `json:"songs"`
	Beats []string       `json:"beats"`
	Count int            `json:"count"`
}

// list serves GET /api/songs.
//
// field and value select a category, beat narrows to a beat label, q filters by
// substring, and sort_beat / sort_key / musical pick the ordering.
func (h *SongsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := h.sortOptions(r)
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}

	filter := store.SongFilter{}
	if field := q.Get("field"); field != "" {
		fs, ok := models.LookupField(field)
		if !ok {
			fail(w, h.deps.Logger, fmt.Errorf("%w: %s", shared.ErrInvalidField, field))
			return
		}
		filter.Field, filter.Value = fs.Name, q.Get("value")
	}

	songs, err := h.deps.Store.ListSongs(r.Context(), filter)
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}

	songs = listing.Search(songs, q.Get("q"))
	beats := listing.BeatButtons(songs)
	if label := q.Get("beat"); label != "" {
		songs = listing.FilterByBeat(songs, label)
	}
	listing.Sort(songs, opts)

	if songs == nil {
		songs = []*models.Song{}
	}
	writeJSON(w, http.StatusOK, songsResponse{Songs: songs, Beats: beats, Count: len(songs)})
}

func (h *SongsHandler) get(w http.ResponseWriter, r *http.Request) {
	song, err := h.deps.Store.GetSong(r.Context(), pathVar(r, "id"))
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// uniqueCategories returns each field's index values in en collation order.
// Fields whose document was never created map to an empty list.
func uniqueCategories(r *http.Request, index CategoryReader) (map[string][]string, error) {
	entries, err := index.ListCategories(r.Context())
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(models.CategoryFields()))
	for _, f := range models.CategoryFields() {
		out[string(f.Name)] = []string{}
	}
	for _, e := range entries {
		values := append([]string{}, e.Values...)
		listing.SortStrings(values)
		out[string(e.Field)] = values
	}
	return out, nil
}

func (h *SongsHandler) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := uniqueCategories(r, h.deps.Index)
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (h *SongsHandler) category(w http.ResponseWriter, r *http.Request) {
	fs, ok := models.LookupField(pathVar(r, "field"))
	if !ok {
		fail(w, h.deps.Logger, fmt.Errorf("%w: %s", shared.ErrInvalidField, pathVar(r, "field")))
		return
	}

	entry, err := h.deps.Index.GetCategory(r.Context(), fs.Name)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		entry = &models.CategoryIndex{Field: fs.Name}
	case err != nil:
		fail(w, h.deps.Logger, err)
		return
	}

	values := append([]string{}, entry.Values...)
	listing.SortStrings(values)
	writeJSON(w, http.StatusOK, models.CategoryIndex{Field: fs.Name, Values: values, UpdatedAt: entry.UpdatedAt})
}

// search serves GET /api/search. The full-text index answers when configured;
// otherwise songs are matched by substring.
func (h *SongsHandler) search(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("q")
	limit := search.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fail(w, h.deps.Logger, fmt.Errorf("%w: limit must be a positive integer", shared.ErrInvalidInput))
			return
		}
		limit = n
	}

	var (
		songs []*models.Song
		err   error
	)
	if h.deps.Search != nil {
		var ids []string
		ids, err = h.deps.Search.Search(r.Context(), input, limit)
		if err == nil {
			songs, err = h.deps.Store.GetSongsByIDs(r.Context(), ids)
		}
	} else {
		if len([]rune(shared.NormalizeQuery(input))) <= 1 {
			err = fmt.Errorf("%w: %w", shared.ErrInvalidInput, search.ErrQueryTooShort)
		} else {
			songs, err = h.deps.Store.ListSongs(r.Context(), store.SongFilter{})
			songs = listing.Search(songs, input)
			listing.Sort(songs, h.deps.Listing)
			if len(songs) > limit {
				songs = songs[:limit]
			}
		}
	}
	if err != nil {
		fail(w, h.deps.Logger, err)
		return
	}

	if songs == nil {
		songs = []*models.Song{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs, "count": len(songs)})
}
