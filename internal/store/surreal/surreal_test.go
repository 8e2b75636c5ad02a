package surreal

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

func TestFieldCondition(t *testing.T) {
	t.Run("multi-value fields use membership", func(t *testing.T) {
		cond, err := fieldCondition(models.FieldGenre)
		require.NoError(t, err)
		assert.Equal(t, "`Genre` CONTAINS $value", cond)
	})

	t.Run("single-value fields use equality", func(t *testing.T) {
		cond, err := fieldCondition(models.FieldHasidut)
		require.NoError(t, err)
		assert.Equal(t, "`hasidut` = $value", cond)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		_, err := fieldCondition("Lyrics; DELETE songs")
		assert.ErrorIs(t, err, shared.ErrInvalidField)
	})
}

func TestSongDoc(t *testing.T) {
	song := &models.Song{ID: "s1", Title: "A", Singer: "Alice", Genre: []string{"Folk"}}

	doc := newSongDoc(song)
	assert.Equal(t, []string{}, doc.Beat, "empty lists are stored as arrays")
	assert.Equal(t, []string{"Folk"}, doc.Genre)

	back := doc.song("s1")
	assert.Nil(t, back.Beat)
	assert.Equal(t, song.Title, back.Title)
	assert.Equal(t, song.Singer, back.Singer)
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "abc", recordKey(sdbmodels.NewRecordID("songs", "abc")))
	assert.Equal(t, "42", recordKey(sdbmodels.NewRecordID("song_changes", int64(42))))
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, "song", "x"))
	assert.ErrorIs(t, mapError(errors.New("An error occurred: "+notFoundMarker), "song", "x"), shared.ErrNotFound)
	assert.ErrorIs(t, mapError(errors.New(conflictMarker), "song", "x"), shared.ErrConflict)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapError(other, "song", "x"))
}

func TestChangeRecordEvent(t *testing.T) {
	r := changeRecord{
		Seq:    7,
		SongID: "s1",
		Before: &songRecord{songDoc: songDoc{Title: "old"}},
		After:  &songDoc{Title: "new"},
	}

	ev := r.event()
	assert.Equal(t, int64(7), ev.ID)
	assert.Equal(t, "update", ev.Op())
	assert.Equal(t, "s1", ev.Before.ID)
	assert.Equal(t, "s1", ev.After.ID)
}

// openTestStore connects to the server in SONGBOOK_SURREALDB_URL, skipping when unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("SONGBOOK_SURREALDB_URL")
	if url == "" {
		t.Skip("SONGBOOK_SURREALDB_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, Options{
		URL:       url,
		Namespace: "songbook_test",
		Database:  shared.GenerateID(),
		Username:  os.Getenv("SONGBOOK_SURREALDB_USER"),
		Password:  os.Getenv("SONGBOOK_SURREALDB_PASS"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStoreIntegration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	song := &models.Song{Title: "Hava Nagila", Singer: "Alice", Genre: []string{"Folk", "Pop"}}
	require.NoError(t, s.CreateSong(ctx, song))

	got, err := s.GetSong(ctx, song.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Folk", "Pop"}, got.Genre)

	song.Genre = []string{"Folk"}
	require.NoError(t, s.UpdateSong(ctx, song))

	exists, err := s.SongExists(ctx, models.FieldSpec{Name: models.FieldGenre, Kind: models.MultiValue}, "Pop")
	require.NoError(t, err)
	assert.False(t, exists)

	folk, err := s.ListSongs(ctx, store.SongFilter{Field: models.FieldGenre, Value: "Folk"})
	require.NoError(t, err)
	assert.Len(t, folk, 1)

	require.NoError(t, s.DeleteSong(ctx, song.ID))
	_, err = s.GetSong(ctx, song.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, s.DeleteSong(ctx, song.ID), shared.ErrNotFound)

	events, err := s.PendingChanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"create", "update", "delete"}, []string{events[0].Op(), events[1].Op(), events[2].Op()})

	require.NoError(t, s.AckChange(ctx, events[0].ID))
	require.NoError(t, s.FailChange(ctx, events[1].ID, errors.New("boom")))
	pending, err := s.PendingChanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempts)

	require.NoError(t, s.UnionCategory(ctx, models.FieldGenre, "Folk", "Pop", "Folk"))
	require.NoError(t, s.RemoveCategory(ctx, models.FieldGenre, "Pop"))
	entry, err := s.GetCategory(ctx, models.FieldGenre)
	require.NoError(t, err)
	assert.Equal(t, []string{"Folk"}, entry.Values)

	p := &models.Playlist{OwnerUID: "u1", SongIDs: []string{"a", "a", "b"}}
	require.NoError(t, s.CreatePlaylist(ctx, p))
	require.NoError(t, s.AddPlaylistSong(ctx, p.ID, "c"))
	require.NoError(t, s.RemovePlaylistSong(ctx, p.ID, "a"))
	gotPlaylist, err := s.GetPlaylist(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, gotPlaylist.SongIDs)
	assert.Equal(t, models.DefaultPlaylistName, gotPlaylist.Name)

	require.NoError(t, s.UpsertUser(ctx, &models.User{UID: "u1", Email: "a@example.com"}))
	require.NoError(t, s.SetAdmin(ctx, "u1", true))
	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.RevokeTokens(ctx, "u1", at))
	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.Admin)
	assert.True(t, u.TokensValidAfter.Equal(at))
}
