package surreal

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/desertthunder/songbook/internal/models"
)

type changeRecord struct {
	Seq       int64       `cbor:"seq"`
	SongID    string      `cbor:"song_id"`
	Before    *songRecord `cbor:"before"`
	After     *songDoc    `cbor:"after"`
	ChangedAt time.Time   `cbor:"changed_at"`
	Attempts  int         `cbor:"attempts"`
	LastError string      `cbor:"last_error"`
}

func (r changeRecord) event() models.ChangeEvent {
	ev := models.ChangeEvent{
		ID:        r.Seq,
		SongID:    r.SongID,
		ChangedAt: r.ChangedAt,
		Attempts:  r.Attempts,
		LastError: r.LastError,
	}
	if r.Before != nil {
		ev.Before = r.Before.song(r.SongID)
	}
	if r.After != nil {
		ev.After = r.After.song(r.SongID)
	}
	return ev
}

func changeRID(id int64) sdbmodels.RecordID {
	return sdbmodels.NewRecordID(changesTable, id)
}

// PendingChanges returns up to limit unprocessed events in commit order.
func (s *Store) PendingChanges(ctx context.Context, limit int) ([]models.ChangeEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT * FROM song_changes WHERE processed = false ORDER BY seq ASC LIMIT $limit"
	res, err := surrealdb.Query[[]changeRecord](ctx, s.db, query, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to query song changes: %w", err)
	}
	records, _ := first(res)

	events := make([]models.ChangeEvent, 0, len(records))
	for _, r := range records {
		events = append(events, r.event())
	}
	return events, nil
}

// AckChange marks an event processed.
func (s *Store) AckChange(ctx context.Context, id int64) error {
	query := `
		BEGIN TRANSACTION;
		IF (SELECT VALUE processed FROM ONLY $rid) != false { THROW "` + notFoundMarker + `" };
		UPDATE $rid SET processed = true, processed_at = time::now();
		COMMIT TRANSACTION;
	`
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{"rid": changeRID(id)})
	if err := mapError(err, "song change", fmt.Sprint(id)); err != nil {
		return fmt.Errorf("failed to ack song change: %w", err)
	}
	return nil
}

// FailChange records a failed attempt, leaving the event pending.
func (s *Store) FailChange(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	query := `
		BEGIN TRANSACTION;
		IF (SELECT VALUE processed FROM ONLY $rid) != false { THROW "` + notFoundMarker + `" };
		UPDATE $rid SET attempts += 1, last_error = $msg;
		COMMIT TRANSACTION;
	`
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{"rid": changeRID(id), "msg": msg})
	if err := mapError(err, "song change", fmt.Sprint(id)); err != nil {
		return fmt.Errorf("failed to record song change failure: %w", err)
	}
	return nil
}

// CountPendingChanges returns the change feed backlog.
func (s *Store) CountPendingChanges(ctx context.Context) (int, error) {
	res, err := surrealdb.Query[int](ctx, s.db, "RETURN count(SELECT id FROM song_changes WHERE processed = false)", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count song changes: %w", err)
	}
	n, _ := first(res)
	return n, nil
}
