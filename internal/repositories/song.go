package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

// songColumns maps category fields to their columns. It is the only source of column
// names interpolated into queries.
var songColumns = map[models.Field]string{
	models.FieldKey:      "key_name",
	models.FieldSinger:   "singer",
	models.FieldComposer: "composer",
	models.FieldHasidut:  "hasidut",
	models.FieldBeat:     "beat",
	models.FieldTheme:    "theme",
	models.FieldSeason:   "season",
	models.FieldEvent:    "event",
	models.FieldGenre:    "genre",
}

const songSelect = `
	SELECT id, sequence, title, key_name, singer, composer, hasidut, beat, theme, season, event, genre, lyrics, created_at, updated_at
	FROM songs
`

// SongRepository persists songs and records a change event for every write.
type SongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db}
}

// CreateSong normalizes and inserts song, assigning an ID when it has none.
func (r *SongRepository) CreateSong(ctx context.Context, song *models.Song) error {
	song.Normalize()
	if err := song.Validate(); err != nil {
		return err
	}
	if song.ID == "" {
		song.ID = shared.GenerateID()
	}

	now := time.Now().UTC()
	song.CreatedAt, song.UpdatedAt = now, now

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		sequence, err := NextSequence(ctx, tx, "songs")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		song.Sequence = sequence

		query := `
			INSERT INTO songs (id, sequence, title, key_name, singer, composer, hasidut, beat, theme, season, event, genre, lyrics, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, query,
			song.ID,
			song.Sequence,
			song.Title,
			song.Key,
			song.Singer,
			song.Composer,
			song.Hasidut,
			encodeList(song.Beat),
			encodeList(song.Theme),
			encodeList(song.Season),
			encodeList(song.Event),
			encodeList(song.Genre),
			song.Lyrics,
			song.CreatedAt,
			song.UpdatedAt,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return fmt.Errorf("%w: song %s", shared.ErrConflict, song.ID)
			}
			return fmt.Errorf("failed to insert song: %w", err)
		}

		return recordChange(ctx, tx, song.ID, nil, song)
	})
}

// GetSong retrieves a song by ID, excluding soft-deleted songs
func (r *SongRepository) GetSong(ctx context.Context, id string) (*models.Song, error) {
	return getSong(ctx, r.db, id)
}

func getSong(ctx context.Context, q querier, id string) (*models.Song, error) {
	row := q.QueryRowContext(ctx, songSelect+" WHERE id = ? AND deleted_at IS NULL", id)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: song %s", shared.ErrNotFound, id)
	}
	return song, err
}

// UpdateSong replaces every field of an existing song.
func (r *SongRepository) UpdateSong(ctx context.Context, song *models.Song) error {
	song.Normalize()
	if err := song.Validate(); err != nil {
		return err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		before, err := getSong(ctx, tx, song.ID)
		if err != nil {
			return err
		}

		song.Sequence = before.Sequence
		song.CreatedAt = before.CreatedAt
		song.UpdatedAt = time.Now().UTC()

		query := `
			UPDATE songs
			SET title = ?, key_name = ?, singer = ?, composer = ?, hasidut = ?, beat = ?, theme = ?, season = ?, event = ?, genre = ?, lyrics = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL
		`
		result, err := tx.ExecContext(ctx, query,
			song.Title,
			song.Key,
			song.Singer,
			song.Composer,
			song.Hasidut,
			encodeList(song.Beat),
			encodeList(song.Theme),
			encodeList(song.Season),
			encodeList(song.Event),
			encodeList(song.Genre),
			song.Lyrics,
			song.UpdatedAt,
			song.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update song: %w", err)
		}
		if err := expectRows(result, "song", song.ID); err != nil {
			return err
		}

		return recordChange(ctx, tx, song.ID, before, song)
	})
}

// DeleteSong soft-deletes a song by ID
func (r *SongRepository) DeleteSong(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		before, err := getSong(ctx, tx, id)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, "UPDATE songs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to delete song: %w", err)
		}
		if err := expectRows(result, "song", id); err != nil {
			return err
		}

		return recordChange(ctx, tx, id, before, nil)
	})
}

// fieldClause returns the WHERE fragment selecting songs that hold a value in field.
func fieldClause(field models.Field) (string, error) {
	spec, ok := models.LookupField(string(field))
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrInvalidField, field)
	}
	col := songColumns[spec.Name]
	if spec.Kind == models.MultiValue {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(songs.%s) WHERE json_each.value = ?)", col), nil
	}
	return col + " = ?", nil
}

// ListSongs retrieves songs matching filter in insertion order.
func (r *SongRepository) ListSongs(ctx context.Context, filter store.SongFilter) ([]*models.Song, error) {
	query := songSelect + " WHERE deleted_at IS NULL"
	args := []any{}

	if filter.Field != "" {
		clause, err := fieldClause(filter.Field)
		if err != nil {
			return nil, err
		}
		query += " AND " + clause
		args = append(args, strings.TrimSpace(filter.Value))
	}

	query += " ORDER BY sequence ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.querySongs(ctx, query, args...)
}

// GetSongsByIDs fetches songs in chunks of ten and returns them in the order of ids.
func (r *SongRepository) GetSongsByIDs(ctx context.Context, ids []string) ([]*models.Song, error) {
	found := make(map[string]*models.Song, len(ids))
	for chunk := range slices.Chunk(ids, 10) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		songs, err := r.querySongs(ctx, songSelect+" WHERE deleted_at IS NULL AND id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, err
		}
		for _, s := range songs {
			found[s.ID] = s
		}
	}

	out := make([]*models.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := found[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// SongExists reports whether any live song holds value in field, stopping at the first match.
func (r *SongRepository) SongExists(ctx context.Context, field models.FieldSpec, value string) (bool, error) {
	clause, err := fieldClause(field.Name)
	if err != nil {
		return false, err
	}

	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM songs WHERE deleted_at IS NULL AND " + clause + " LIMIT 1)"
	if err := r.db.QueryRowContext(ctx, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check song existence: %w", err)
	}
	return exists, nil
}

func (r *SongRepository) querySongs(ctx context.Context, query string, args ...any) ([]*models.Song, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	songs := []*models.Song{}
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return songs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSong scans a row selected with songSelect into a [models.Song]
func scanSong(row scanner) (*models.Song, error) {
	var (
		s                                 models.Song
		beat, theme, season, event, genre string
	)

	err := row.Scan(&s.ID, &s.Sequence, &s.Title, &s.Key, &s.Singer, &s.Composer, &s.Hasidut,
		&beat, &theme, &season, &event, &genre, &s.Lyrics, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}

	s.Beat = decodeList(beat)
	s.Theme = decodeList(theme)
	s.Season = decodeList(season)
	s.Event = decodeList(event)
	s.Genre = decodeList(genre)
	return &s, nil
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func decodeList(s string) []string {
	var values []string
	if err := json.Unmarshal([]byte(s), &values); err != nil || len(values) == 0 {
		return nil
	}
	return values
}
