package surreal

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
)

type playlistRecord struct {
	ID        sdbmodels.RecordID `cbor:"id"`
	OwnerUID  string             `cbor:"owner_uid"`
	Name      string             `cbor:"name"`
	SongIDs   []string           `cbor:"song_ids"`
	CreatedAt time.Time          `cbor:"created_at"`
	UpdatedAt time.Time          `cbor:"updated_at"`
}

func (r playlistRecord) playlist() *models.Playlist {
	ids := r.SongIDs
	if ids == nil {
		ids = []string{}
	}
	return &models.Playlist{
		ID:        recordKey(r.ID),
		OwnerUID:  r.OwnerUID,
		Name:      r.Name,
		SongIDs:   ids,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func playlistRID(id string) sdbmodels.RecordID {
	return sdbmodels.NewRecordID(playlistsTable, id)
}

// CreatePlaylist stores a new playlist with a generated ID.
func (s *Store) CreatePlaylist(ctx context.Context, playlist *models.Playlist) error {
	if playlist.OwnerUID == "" {
		return fmt.Errorf("%w: playlist owner is required", shared.ErrInvalidInput)
	}

	playlist.ID = shared.GenerateID()
	playlist.Name = models.SanitizePlaylistName(playlist.Name)
	now := time.Now().UTC()
	playlist.CreatedAt, playlist.UpdatedAt = now, now

	songIDs := playlist.SongIDs
	playlist.SongIDs = []string{}
	for _, id := range songIDs {
		playlist.AddSong(id)
	}

	query := `
		BEGIN TRANSACTION;
	` + nextValue(playlistsTable, "seq") + `
		CREATE $rid CONTENT {
			sequence: $seq, owner_uid: $owner, name: $name, song_ids: $songs,
			created_at: $now, updated_at: $now
		};
		COMMIT TRANSACTION;
	`
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"rid":   playlistRID(playlist.ID),
		"owner": playlist.OwnerUID,
		"name":  playlist.Name,
		"songs": playlist.SongIDs,
		"now":   now,
	})
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

// GetPlaylist retrieves a live playlist.
func (s *Store) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	res, err := surrealdb.Query[[]playlistRecord](ctx, s.db, "SELECT * FROM $rid WHERE deleted_at = NONE", map[string]any{"rid": playlistRID(id)})
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	records, _ := first(res)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	return records[0].playlist(), nil
}

// ListPlaylists returns the owner's live playlists in creation order.
func (s *Store) ListPlaylists(ctx context.Context, ownerUID string) ([]*models.Playlist, error) {
	query := "SELECT * FROM playlists WHERE owner_uid = $owner AND deleted_at = NONE ORDER BY sequence ASC"
	res, err := surrealdb.Query[[]playlistRecord](ctx, s.db, query, map[string]any{"owner": ownerUID})
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	records, _ := first(res)

	playlists := make([]*models.Playlist, 0, len(records))
	for _, r := range records {
		playlists = append(playlists, r.playlist())
	}
	return playlists, nil
}

// mutatePlaylist runs set against a live playlist, failing with
// [shared.ErrNotFound] when there is none.
func (s *Store) mutatePlaylist(ctx context.Context, id, set string, params map[string]any) error {
	query := `
		BEGIN TRANSACTION;
		IF (SELECT VALUE id FROM ONLY $rid WHERE deleted_at = NONE) = NONE { THROW "` + notFoundMarker + `" };
		UPDATE $rid SET ` + set + `, updated_at = time::now();
		COMMIT TRANSACTION;
	`
	params["rid"] = playlistRID(id)
	_, err := surrealdb.Query[any](ctx, s.db, query, params)
	if err := mapError(err, "playlist", id); err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return nil
}

// RenamePlaylist sets a sanitized name.
func (s *Store) RenamePlaylist(ctx context.Context, id, name string) error {
	return s.mutatePlaylist(ctx, id, "name = $name", map[string]any{"name": models.SanitizePlaylistName(name)})
}

// AddPlaylistSong appends songID unless present.
func (s *Store) AddPlaylistSong(ctx context.Context, id, songID string) error {
	return s.mutatePlaylist(ctx, id, "song_ids = array::union(song_ids ?? [], [$song])", map[string]any{"song": songID})
}

// RemovePlaylistSong drops songID.
func (s *Store) RemovePlaylistSong(ctx context.Context, id, songID string) error {
	return s.mutatePlaylist(ctx, id, "song_ids = array::complement(song_ids ?? [], [$song])", map[string]any{"song": songID})
}

// DeletePlaylist soft deletes a playlist.
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	return s.mutatePlaylist(ctx, id, "deleted_at = time::now()", map[string]any{})
}
