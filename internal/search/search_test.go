package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	th "github.com/desertthunder/songbook/internal/testing"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.Rebuild(context.Background(), th.SampleSongs()))
	return idx
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t)

	t.Run("title", func(t *testing.T) {
		ids, err := idx.Search(ctx, "nagila", 10)
		require.NoError(t, err)
		require.NotEmpty(t, ids)
		assert.Equal(t, "s1", ids[0])
	})

	t.Run("title prefix", func(t *testing.T) {
		ids, err := idx.Search(ctx, "shal", 10)
		require.NoError(t, err)
		assert.Contains(t, ids, "s4")
	})

	t.Run("fuzzy title", func(t *testing.T) {
		ids, err := idx.Search(ctx, "nagela", 10)
		require.NoError(t, err)
		assert.Contains(t, ids, "s1")
	})

	t.Run("singer", func(t *testing.T) {
		ids, err := idx.Search(ctx, "alice", 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s3"}, ids)
	})

	t.Run("field scoped", func(t *testing.T) {
		ids, err := idx.Search(ctx, "hasidut:chabad", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"s4"}, ids)
	})

	t.Run("limit", func(t *testing.T) {
		ids, err := idx.Search(ctx, "alice", 1)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := idx.Search(ctx, " a ", 10)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.ErrorIs(t, err, ErrQueryTooShort)
	})
}

func TestHandleChange(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t)

	t.Run("create", func(t *testing.T) {
		ev := models.ChangeEvent{SongID: "s9", After: &models.Song{Title: "Yerushalayim Shel Zahav"}}
		require.NoError(t, idx.HandleChange(ctx, ev))

		ids, err := idx.Search(ctx, "yerushalayim", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"s9"}, ids)
	})

	t.Run("update replaces", func(t *testing.T) {
		before := th.SampleSongs()[0]
		after := before.Clone()
		after.Singer = "Carol"
		require.NoError(t, idx.HandleChange(ctx, models.ChangeEvent{SongID: "s1", Before: before, After: after}))

		ids, err := idx.Search(ctx, "carol", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, ids)

		ids, err = idx.Search(ctx, "singer:alice", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"s3"}, ids)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, idx.HandleChange(ctx, models.ChangeEvent{SongID: "s4", Before: th.SampleSongs()[3]}))

		ids, err := idx.Search(ctx, "hasidut:chabad", 10)
		require.NoError(t, err)
		assert.Empty(t, ids)

		require.NoError(t, idx.HandleChange(ctx, models.ChangeEvent{SongID: "s4"}), "replayed delete is a no-op")
	})
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t)

	songs := th.SampleSongs()[:2]
	require.NoError(t, idx.Rebuild(ctx, songs))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	ids, err := idx.Search(ctx, "shalom", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songs.bleve")

	idx, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Put(&models.Song{ID: "s1", Title: "Hava Nagila"}))
	require.NoError(t, idx.Close())

	idx, err = Open(path, nil)
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}
