package surreal

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/surrealdb/surrealdb.go"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

// songDoc is the stored shape of a song without its record id.
type songDoc struct {
	Sequence  int       `cbor:"sequence"`
	Title     string    `cbor:"title"`
	Key       string    `cbor:"Key"`
	Singer    string    `cbor:"Singer"`
	Composer  string    `cbor:"Composer"`
	Hasidut   string    `cbor:"hasidut"`
	Beat      []string  `cbor:"Beat"`
	Theme     []string  `cbor:"Theme"`
	Season    []string  `cbor:"Season"`
	Event     []string  `cbor:"Event"`
	Genre     []string  `cbor:"Genre"`
	Lyrics    string    `cbor:"Lyrics"`
	CreatedAt time.Time `cbor:"created_at"`
	UpdatedAt time.Time `cbor:"updated_at"`
}

type songRecord struct {
	ID sdbmodels.RecordID `cbor:"id"`
	songDoc
}

func newSongDoc(song *models.Song) songDoc {
	list := func(v []string) []string {
		if v == nil {
			return []string{}
		}
		return v
	}
	return songDoc{
		Sequence:  song.Sequence,
		Title:     song.Title,
		Key:       song.Key,
		Singer:    song.Singer,
		Composer:  song.Composer,
		Hasidut:   song.Hasidut,
		Beat:      list(song.Beat),
		Theme:     list(song.Theme),
		Season:    list(song.Season),
		Event:     list(song.Event),
		Genre:     list(song.Genre),
		Lyrics:    song.Lyrics,
		CreatedAt: song.CreatedAt,
		UpdatedAt: song.UpdatedAt,
	}
}

func (d songDoc) song(id string) *models.Song {
	list := func(v []string) []string {
		if len(v) == 0 {
			return nil
		}
		return v
	}
	return &models.Song{
		ID:        id,
		Sequence:  d.Sequence,
		Title:     d.Title,
		Key:       d.Key,
		Singer:    d.Singer,
		Composer:  d.Composer,
		Hasidut:   d.Hasidut,
		Beat:      list(d.Beat),
		Theme:     list(d.Theme),
		Season:    list(d.Season),
		Event:     list(d.Event),
		Genre:     list(d.Genre),
		Lyrics:    d.Lyrics,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func recordKey(rid sdbmodels.RecordID) string {
	if s, ok := rid.ID.(string); ok {
		return s
	}
	return fmt.Sprint(rid.ID)
}

func songRID(id string) sdbmodels.RecordID {
	return sdbmodels.NewRecordID(songsTable, id)
}

// CreateSong normalizes and stores song with its creation event.
func (s *Store) CreateSong(ctx context.Context, song *models.Song) error {
	song.Normalize()
	if err := song.Validate(); err != nil {
		return err
	}
	if song.ID == "" {
		song.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	song.CreatedAt, song.UpdatedAt = now, now

	query := `
		BEGIN TRANSACTION;
		IF (SELECT VALUE id FROM ONLY $rid) != NONE { THROW "` + conflictMarker + `" };
	` + nextValue(songsTable, "seq") + `
		LET $doc = object::extend($doc, { sequence: $seq });
		CREATE $rid CONTENT $doc;
	` + nextValue(changesTable, "change") + `
		CREATE type::thing("song_changes", $change) CONTENT {
			seq: $change, song_id: $id, before: NONE, after: $doc,
			changed_at: time::now(), attempts: 0, last_error: "", processed: false
		};
		RETURN $seq;
		COMMIT TRANSACTION;
	`
	res, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"rid": songRID(song.ID),
		"id":  song.ID,
		"doc": newSongDoc(song),
	})
	if err := mapError(err, "song", song.ID); err != nil {
		return fmt.Errorf("failed to insert song: %w", err)
	}
	if seq, ok := lastResult(res); ok {
		song.Sequence = toInt(seq)
	}
	s.logger.Debug("song created", "songId", song.ID)
	return nil
}

// GetSong returns a live song.
func (s *Store) GetSong(ctx context.Context, id string) (*models.Song, error) {
	res, err := surrealdb.Query[[]songRecord](ctx, s.db, "SELECT * FROM $rid WHERE deleted_at = NONE", map[string]any{"rid": songRID(id)})
	if err != nil {
		return nil, fmt.Errorf("failed to get song: %w", err)
	}
	records, _ := first(res)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: song %s", shared.ErrNotFound, id)
	}
	return records[0].song(recordKey(records[0].ID)), nil
}

// UpdateSong replaces a live song and records the before and after documents.
func (s *Store) UpdateSong(ctx context.Context, song *models.Song) error {
	song.Normalize()
	if err := song.Validate(); err != nil {
		return err
	}
	song.UpdatedAt = time.Now().UTC()

	query := `
		BEGIN TRANSACTION;
		LET $before = (SELECT * FROM ONLY $rid);
		IF $before = NONE OR $before.deleted_at != NONE { THROW "` + notFoundMarker + `" };
		LET $doc = object::extend($doc, { sequence: $before.sequence, created_at: $before.created_at });
		UPDATE $rid CONTENT $doc;
	` + nextValue(changesTable, "change") + `
		CREATE type::thing("song_changes", $change) CONTENT {
			seq: $change, song_id: $id, before: $before, after: $doc,
			changed_at: time::now(), attempts: 0, last_error: "", processed: false
		};
		COMMIT TRANSACTION;
	`
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"rid": songRID(song.ID),
		"id":  song.ID,
		"doc": newSongDoc(song),
	})
	if err := mapError(err, "song", song.ID); err != nil {
		return fmt.Errorf("failed to update song: %w", err)
	}
	return nil
}

// DeleteSong soft deletes a live song.
func (s *Store) DeleteSong(ctx context.Context, id string) error {
	query := `
		BEGIN TRANSACTION;
		LET $before = (SELECT * FROM ONLY $rid);
		IF $before = NONE OR $before.deleted_at != NONE { THROW "` + notFoundMarker + `" };
		UPDATE $rid SET deleted_at = time::now();
	` + nextValue(changesTable, "change") + `
		CREATE type::thing("song_changes", $change) CONTENT {
			seq: $change, song_id: $id, before: $before, after: NONE,
			changed_at: time::now(), attempts: 0, last_error: "", processed: false
		};
		COMMIT TRANSACTION;
	`
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{"rid": songRID(id), "id": id})
	if err := mapError(err, "song", id); err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	return nil
}

// fieldCondition builds the WHERE fragment matching $value in field. Field names
// are checked against the known category fields before interpolation.
func fieldCondition(field models.Field) (string, error) {
	spec, ok := models.LookupField(string(field))
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrInvalidField, field)
	}
	if spec.Kind == models.MultiValue {
		return fmt.Sprintf("`%s` CONTAINS $value", spec.Name), nil
	}
	return fmt.Sprintf("`%s` = $value", spec.Name), nil
}

// ListSongs returns live songs in insertion order.
func (s *Store) ListSongs(ctx context.Context, filter store.SongFilter) ([]*models.Song, error) {
	query := "SELECT * FROM songs WHERE deleted_at = NONE"
	params := map[string]any{}
	if filter.Field != "" {
		cond, err := fieldCondition(filter.Field)
		if err != nil {
			return nil, err
		}
		query += " AND " + cond
		params["value"] = filter.Value
	}
	query += " ORDER BY sequence ASC"
	if filter.Limit > 0 {
		query += " LIMIT $limit"
		params["limit"] = filter.Limit
	}

	res, err := surrealdb.Query[[]songRecord](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	records, _ := first(res)

	songs := make([]*models.Song, 0, len(records))
	for _, r := range records {
		songs = append(songs, r.song(recordKey(r.ID)))
	}
	return songs, nil
}

// GetSongsByIDs returns live songs in the order of ids, skipping missing ones.
func (s *Store) GetSongsByIDs(ctx context.Context, ids []string) ([]*models.Song, error) {
	songs := []*models.Song{}
	if len(ids) == 0 {
		return songs, nil
	}

	rids := make([]sdbmodels.RecordID, 0, len(ids))
	for _, id := range ids {
		rids = append(rids, songRID(id))
	}

	res, err := surrealdb.Query[[]songRecord](ctx, s.db, "SELECT * FROM $rids WHERE deleted_at = NONE", map[string]any{"rids": rids})
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	records, _ := first(res)

	byID := make(map[string]*models.Song, len(records))
	for _, r := range records {
		key := recordKey(r.ID)
		byID[key] = r.song(key)
	}
	for _, id := range slices.Compact(slices.Clone(ids)) {
		if song, ok := byID[id]; ok {
			songs = append(songs, song)
		}
	}
	return songs, nil
}

// SongExists reports whether any live song holds value in field.
func (s *Store) SongExists(ctx context.Context, field models.FieldSpec, value string) (bool, error) {
	cond, err := fieldCondition(field.Name)
	if err != nil {
		return false, err
	}

	query := "RETURN count(SELECT id FROM songs WHERE deleted_at = NONE AND " + cond + " LIMIT 1) > 0"
	res, err := surrealdb.Query[bool](ctx, s.db, query, map[string]any{"value": value})
	if err != nil {
		return false, fmt.Errorf("failed to check song existence: %w", err)
	}
	exists, _ := first(res)
	return exists, nil
}

// lastResult returns the result of the last statement in a multi-statement query.
func lastResult(results *[]surrealdb.QueryResult[any]) (any, bool) {
	if results == nil || len(*results) == 0 {
		return nil, false
	}
	return (*results)[len(*results)-1].Result, true
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
