package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/songbook/internal/models"
)

// recordChange appends a song_changes row inside the write's transaction.
func recordChange(ctx context.Context, tx *sql.Tx, songID string, before, after *models.Song) error {
	beforeDoc, err := encodeSnapshot(before)
	if err != nil {
		return err
	}
	afterDoc, err := encodeSnapshot(after)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO song_changes (song_id, before_doc, after_doc, changed_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, songID, beforeDoc, afterDoc, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record song change: %w", err)
	}
	return nil
}

func encodeSnapshot(song *models.Song) (sql.NullString, error) {
	if song == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(song)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode song snapshot: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeSnapshot(doc sql.NullString) (*models.Song, error) {
	if !doc.Valid {
		return nil, nil
	}
	var song models.Song
	if err := json.Unmarshal([]byte(doc.String), &song); err != nil {
		return nil, fmt.Errorf("failed to decode song snapshot: %w", err)
	}
	return &song, nil
}

// ChangeRepository reads and acknowledges the song change outbox.
type ChangeRepository struct {
	db *sql.DB
}

// NewChangeRepository creates a new ChangeRepository with the given database connection
func NewChangeRepository(db *sql.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// PendingChanges returns up to limit unprocessed events, oldest first.
func (r *ChangeRepository) PendingChanges(ctx context.Context, limit int) ([]models.ChangeEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, song_id, before_doc, after_doc, changed_at, attempts, last_error
		FROM song_changes
		WHERE processed_at IS NULL
		ORDER BY id ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query song changes: %w", err)
	}
	defer rows.Close()

	events := []models.ChangeEvent{}
	for rows.Next() {
		var (
			ev                  models.ChangeEvent
			beforeDoc, afterDoc sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.SongID, &beforeDoc, &afterDoc, &ev.ChangedAt, &ev.Attempts, &ev.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan song change: %w", err)
		}
		if ev.Before, err = decodeSnapshot(beforeDoc); err != nil {
			return nil, err
		}
		if ev.After, err = decodeSnapshot(afterDoc); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// AckChange marks an event processed.
func (r *ChangeRepository) AckChange(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "UPDATE song_changes SET processed_at = ? WHERE id = ? AND processed_at IS NULL", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to ack song change: %w", err)
	}
	return expectRows(result, "song change", fmt.Sprint(id))
}

// FailChange records a failed attempt, leaving the event pending.
func (r *ChangeRepository) FailChange(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	result, err := r.db.ExecContext(ctx, "UPDATE song_changes SET attempts = attempts + 1, last_error = ? WHERE id = ? AND processed_at IS NULL", msg, id)
	if err != nil {
		return fmt.Errorf("failed to record song change failure: %w", err)
	}
	return expectRows(result, "song change", fmt.Sprint(id))
}

// CountPendingChanges returns the outbox backlog.
func (r *ChangeRepository) CountPendingChanges(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM song_changes WHERE processed_at IS NULL").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count song changes: %w", err)
	}
	return n, nil
}
