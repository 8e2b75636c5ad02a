package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
)

// PlaylistRepository persists playlists. Song membership is kept in playlist_songs
// with an explicit position.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// CreatePlaylist inserts a new playlist with a generated ID and its initial songs.
func (r *PlaylistRepository) CreatePlaylist(ctx context.Context, playlist *models.Playlist) error {
	if playlist.OwnerUID == "" {
		return fmt.Errorf("%w: playlist owner is required", shared.ErrInvalidInput)
	}

	playlist.ID = shared.GenerateID()
	playlist.Name = models.SanitizePlaylistName(playlist.Name)
	now := time.Now().UTC()
	playlist.CreatedAt, playlist.UpdatedAt = now, now

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		sequence, err := NextSequence(ctx, tx, "playlists")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}

		query := `
			INSERT INTO playlists (id, sequence, owner_uid, name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query, playlist.ID, sequence, playlist.OwnerUID, playlist.Name, now, now); err != nil {
			return fmt.Errorf("failed to insert playlist: %w", err)
		}

		songIDs := playlist.SongIDs
		playlist.SongIDs = nil
		for _, songID := range songIDs {
			if !playlist.AddSong(songID) {
				continue
			}
			if err := insertPlaylistSong(ctx, tx, playlist.ID, songID); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertPlaylistSong(ctx context.Context, tx *sql.Tx, playlistID, songID string) error {
	query := `
		INSERT OR IGNORE INTO playlist_songs (playlist_id, song_id, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_songs WHERE playlist_id = ?))
	`
	if _, err := tx.ExecContext(ctx, query, playlistID, songID, playlistID); err != nil {
		return fmt.Errorf("failed to add playlist song: %w", err)
	}
	return nil
}

// GetPlaylist retrieves a playlist by ID, excluding soft-deleted playlists
func (r *PlaylistRepository) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	query := `
		SELECT id, owner_uid, name, created_at, updated_at
		FROM playlists
		WHERE id = ? AND deleted_at IS NULL
	`
	var p models.Playlist
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.OwnerUID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	if p.SongIDs, err = r.playlistSongIDs(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PlaylistRepository) playlistSongIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY position ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist songs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var songID string
		if err := rows.Scan(&songID); err != nil {
			return nil, fmt.Errorf("failed to scan playlist song: %w", err)
		}
		ids = append(ids, songID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// ListPlaylists returns the owner's playlists in creation order.
func (r *PlaylistRepository) ListPlaylists(ctx context.Context, ownerUID string) ([]*models.Playlist, error) {
	query := `
		SELECT id, owner_uid, name, created_at, updated_at
		FROM playlists
		WHERE owner_uid = ? AND deleted_at IS NULL
		ORDER BY sequence ASC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	playlists := []*models.Playlist{}
	for rows.Next() {
		var p models.Playlist
		if err := rows.Scan(&p.ID, &p.OwnerUID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, &p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, p := range playlists {
		if p.SongIDs, err = r.playlistSongIDs(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return playlists, nil
}

// RenamePlaylist sets a sanitized name.
func (r *PlaylistRepository) RenamePlaylist(ctx context.Context, id, name string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE playlists SET name = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		models.SanitizePlaylistName(name), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to rename playlist: %w", err)
	}
	return expectRows(result, "playlist", id)
}

func touchPlaylist(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := tx.ExecContext(ctx, "UPDATE playlists SET updated_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return expectRows(result, "playlist", id)
}

// AddPlaylistSong appends songID unless already present.
func (r *PlaylistRepository) AddPlaylistSong(ctx context.Context, id, songID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := touchPlaylist(ctx, tx, id); err != nil {
			return err
		}
		return insertPlaylistSong(ctx, tx, id, songID)
	})
}

// RemovePlaylistSong drops songID. Removing an absent song is a no-op.
func (r *PlaylistRepository) RemovePlaylistSong(ctx context.Context, id, songID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := touchPlaylist(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_songs WHERE playlist_id = ? AND song_id = ?", id, songID); err != nil {
			return fmt.Errorf("failed to remove playlist song: %w", err)
		}
		return nil
	})
}

// DeletePlaylist soft-deletes a playlist by ID
func (r *PlaylistRepository) DeletePlaylist(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE playlists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return expectRows(result, "playlist", id)
}
