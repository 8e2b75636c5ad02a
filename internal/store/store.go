// Package store defines the persistence contracts shared by every backend.
//
// The interfaces are split by concern so a deployment can mix backends: songs,
// playlists and users live in the primary store ([github.com/desertthunder/songbook/internal/repositories]
// for SQLite, [github.com/desertthunder/songbook/internal/store/surreal] for SurrealDB), while the
// category index may live in DynamoDB ([github.com/desertthunder/songbook/internal/store/dynamo]).
//
// Every write to a song produces a [models.ChangeEvent] on the primary store's
// [ChangeFeed] in the same transaction as the write itself. Consumers drain the
// feed and acknowledge events once handled, giving at-least-once delivery.
//
// Get methods return an error wrapping [shared.ErrNotFound] for missing records.
// List methods return empty slices for no results.
package store

import (
	"context"
	"time"

	"github.com/desertthunder/songbook/internal/models"
)

// SongFilter narrows ListSongs. The zero value lists every song in insertion order.
type SongFilter struct {
	// Field and Value select songs holding Value in Field (equality for
	// single-value fields, membership for multi-value fields).
	Field models.Field
	Value string
	Limit int
}

// SongStore persists songs.
type SongStore interface {
	CreateSong(ctx context.Context, song *models.Song) error
	GetSong(ctx context.Context, id string) (*models.Song, error)
	UpdateSong(ctx context.Context, song *models.Song) error
	DeleteSong(ctx context.Context, id string) error
	ListSongs(ctx context.Context, filter SongFilter) ([]*models.Song, error)
	// GetSongsByIDs returns the songs found, in the order of ids. Missing ids are skipped.
	GetSongsByIDs(ctx context.Context, ids []string) ([]*models.Song, error)
	// SongExists reports whether at least one live song holds value in field.
	SongExists(ctx context.Context, field models.FieldSpec, value string) (bool, error)
}

// CategoryStore persists the categories_metadata index. Union and Remove are
// idempotent and atomic per field document.
type CategoryStore interface {
	UnionCategory(ctx context.Context, field models.Field, values ...string) error
	RemoveCategory(ctx context.Context, field models.Field, value string) error
	GetCategory(ctx context.Context, field models.Field) (*models.CategoryIndex, error)
	ListCategories(ctx context.Context) ([]*models.CategoryIndex, error)
}

// ChangeFeed exposes pending song change notifications in commit order.
type ChangeFeed interface {
	PendingChanges(ctx context.Context, limit int) ([]models.ChangeEvent, error)
	AckChange(ctx context.Context, id int64) error
	FailChange(ctx context.Context, id int64, cause error) error
}

// PlaylistStore persists user playlists.
type PlaylistStore interface {
	CreatePlaylist(ctx context.Context, playlist *models.Playlist) error
	GetPlaylist(ctx context.Context, id string) (*models.Playlist, error)
	ListPlaylists(ctx context.Context, ownerUID string) ([]*models.Playlist, error)
	RenamePlaylist(ctx context.Context, id, name string) error
	AddPlaylistSong(ctx context.Context, id, songID string) error
	RemovePlaylistSong(ctx context.Context, id, songID string) error
	DeletePlaylist(ctx context.Context, id string) error
}

// UserStore persists accounts and their custom claims.
type UserStore interface {
	// UpsertUser records identity fields, keeping existing claims.
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, uid string) (*models.User, error)
	SetAdmin(ctx context.Context, uid string, admin bool) error
	// RevokeTokens invalidates every session issued before at.
	RevokeTokens(ctx context.Context, uid string, at time.Time) error
}

// Store is the primary store.
type Store interface {
	SongStore
	CategoryStore
	ChangeFeed
	PlaylistStore
	UserStore

	Migrate(ctx context.Context) error
	Close() error
}
