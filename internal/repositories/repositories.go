package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

// querier is satisfied by both [sql.DB] and [sql.Tx].
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers are NOT exposed in API output but used for default ordering.
func NextSequence(ctx context.Context, q querier, table string) (int, error) {
	sequenceTable := table + "_sequence"

	if _, err := q.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}
	return sequence, nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// expectRows returns an error wrapping [shared.ErrNotFound] when result touched no rows.
func expectRows(result sql.Result, what, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, what, id)
	}
	return nil
}

// Store is the SQLite [store.Store].
type Store struct {
	*SongRepository
	*CategoryRepository
	*ChangeRepository
	*PlaylistRepository
	*UserRepository

	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// NewStore opens the SQLite database at path and builds every repository over it.
func NewStore(path string) (*Store, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	return NewStoreFromDB(db), nil
}

// NewStoreFromDB builds a Store over an open database.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{
		SongRepository:     NewSongRepository(db),
		CategoryRepository: NewCategoryRepository(db),
		ChangeRepository:   NewChangeRepository(db),
		PlaylistRepository: NewPlaylistRepository(db),
		UserRepository:     NewUserRepository(db),
		db:                 db,
	}
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return shared.RunMigrations(ctx, s.db)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
