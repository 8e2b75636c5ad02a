// Package surreal implements [store.Store] on SurrealDB.
//
// Records are stored schemaless in the songs, song_changes, categories_metadata,
// playlists and users tables. Every song write runs as one SurrealQL transaction
// that also appends a song_changes record holding the before and after documents,
// so the change feed has the same guarantees as the SQLite outbox.
//
// The connection uses the surrealcbor codec so time values and record IDs round
// trip without conversion.
package surreal

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

const (
	songsTable      = "songs"
	changesTable    = "song_changes"
	categoriesTable = "categories_metadata"
	playlistsTable  = "playlists"
	usersTable      = "users"
	countersTable   = "counters"

	// Markers thrown inside transactions and mapped back to sentinel errors.
	notFoundMarker = "songbook: record not found"
	conflictMarker = "songbook: record exists"
)

var _ store.Store = (*Store)(nil)

// Options configures the SurrealDB connection.
type Options struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// OptionsFromConfig reads connection options from the database config section.
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		URL:       cfg.Database.URL,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Name,
		Username:  cfg.Database.Username,
		Password:  cfg.Database.Password,
	}
}

// Store is a SurrealDB backed [store.Store].
type Store struct {
	db     *surrealdb.DB
	logger *log.Logger
}

// Open connects, authenticates when credentials are given and selects the
// namespace and database.
func Open(ctx context.Context, opts Options, logger *log.Logger) (*Store, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: database.url is required for surrealdb", shared.ErrMissingConfig)
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", shared.ErrInvalidConfig, err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDatabaseConnection, err)
	}

	if opts.Username != "" && opts.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{"user": opts.Username, "pass": opts.Password}); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("%w: failed to authenticate: %v", shared.ErrDatabaseConnection, err)
		}
	}

	if err := db.Use(ctx, opts.Namespace, opts.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("%w: failed to use %s/%s: %v", shared.ErrDatabaseConnection, opts.Namespace, opts.Database, err)
	}

	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger.Debug("connected to surrealdb", "url", opts.URL, "namespace", opts.Namespace, "database", opts.Database)
	return &Store{db: db, logger: logger}, nil
}

// schema defines the tables and the indexes used by list queries. Every
// statement is idempotent.
const schema = `
	DEFINE TABLE IF NOT EXISTS songs SCHEMALESS;
	DEFINE INDEX IF NOT EXISTS songs_sequence ON TABLE songs FIELDS sequence;
	DEFINE TABLE IF NOT EXISTS song_changes SCHEMALESS;
	DEFINE INDEX IF NOT EXISTS song_changes_pending ON TABLE song_changes FIELDS processed, seq;
	DEFINE TABLE IF NOT EXISTS categories_metadata SCHEMALESS;
	DEFINE TABLE IF NOT EXISTS playlists SCHEMALESS;
	DEFINE INDEX IF NOT EXISTS playlists_owner ON TABLE playlists FIELDS owner_uid;
	DEFINE TABLE IF NOT EXISTS users SCHEMALESS;
	DEFINE TABLE IF NOT EXISTS counters SCHEMALESS;
`

// Migrate defines the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, s.db, schema, nil); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMigration, err)
	}
	return nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// nextValue is a statement fragment bumping a named counter and binding it.
func nextValue(counter, bind string) string {
	return fmt.Sprintf("LET $%s = (UPSERT ONLY type::thing(%q, %q) SET value = (value ?? 0) + 1 RETURN VALUE value);", bind, countersTable, counter)
}

// mapError converts thrown markers into sentinel errors.
func mapError(err error, what, id string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), notFoundMarker) {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, what, id)
	}
	if strings.Contains(err.Error(), conflictMarker) {
		return fmt.Errorf("%w: %s %s", shared.ErrConflict, what, id)
	}
	return err
}

// first returns the first statement result of a query, or the zero value.
func first[T any](results *[]surrealdb.QueryResult[T]) (T, bool) {
	var zero T
	if results == nil || len(*results) == 0 {
		return zero, false
	}
	return (*results)[0].Result, true
}
