package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/songbook/internal/listing"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

// fakeIndex is an in-memory category index that can be told to fail for a field.
type fakeIndex struct {
	mu      sync.Mutex
	values  map[models.Field][]string
	failOn  models.Field
	unions  int
	removes int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{values: map[models.Field][]string{}}
}

func (f *fakeIndex) UnionCategory(_ context.Context, field models.Field, values ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if field == f.failOn {
		return fmt.Errorf("write %s: unavailable", field)
	}
	f.unions++
	for _, v := range values {
		if !slices.Contains(f.values[field], v) {
			f.values[field] = append(f.values[field], v)
		}
	}
	return nil
}

func (f *fakeIndex) RemoveCategory(_ context.Context, field models.Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if field == f.failOn {
		return fmt.Errorf("write %s: unavailable", field)
	}
	f.removes++
	if _, ok := f.values[field]; !ok {
		f.values[field] = []string{}
	}
	f.values[field] = slices.DeleteFunc(f.values[field], func(v string) bool { return v == value })
	return nil
}

func (f *fakeIndex) ListCategories(context.Context) ([]*models.CategoryIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CategoryIndex
	for field, values := range f.values {
		out = append(out, &models.CategoryIndex{Field: field, Values: slices.Clone(values)})
	}
	return out, nil
}

func (f *fakeIndex) get(field models.Field) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.values[field])
}

// fakeSongs is a song collection answering liveness queries.
type fakeSongs struct {
	mu      sync.Mutex
	songs   map[string]*models.Song
	queries int
	err     error
	listErr error
}

func newFakeSongs(songs ...*models.Song) *fakeSongs {
	f := &fakeSongs{songs: map[string]*models.Song{}}
	for _, s := range songs {
		f.songs[s.ID] = s
	}
	return f
}

func (f *fakeSongs) put(s *models.Song) (before *models.Song) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before = f.songs[s.ID]
	f.songs[s.ID] = s
	return before
}

func (f *fakeSongs) del(id string) (before *models.Song) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before = f.songs[id]
	delete(f.songs, id)
	return before
}

func (f *fakeSongs) SongExists(_ context.Context, field models.FieldSpec, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.err != nil {
		return false, f.err
	}
	for _, s := range f.songs {
		if listing.HasValue(s, field, value) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSongs) ListSongs(context.Context, store.SongFilter) ([]*models.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Song
	for _, s := range f.songs {
		out = append(out, s)
	}
	return out, nil
}

func newTestSynchronizer(index *fakeIndex, songs *fakeSongs) (*Synchronizer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSynchronizer(index, songs, shared.NewLogger(&buf), WithConcurrency(4)), &buf
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Normalize([]string{" a", "", "b ", "a", "  "}))
	assert.Empty(t, Normalize(nil))
}

func TestDiff(t *testing.T) {
	tc := []struct {
		name    string
		before  []string
		after   []string
		added   []string
		removed []string
	}{
		{name: "create", after: []string{"Pop"}, added: []string{"Pop"}},
		{name: "delete", before: []string{"Pop"}, removed: []string{"Pop"}},
		{name: "swap", before: []string{"Pop", "Folk"}, after: []string{"Folk", "Jazz"}, added: []string{"Jazz"}, removed: []string{"Pop"}},
		{name: "whitespace only change", before: []string{"Pop"}, after: []string{" Pop "}},
		{name: "blanks ignored", before: []string{" "}, after: []string{""}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := Diff(tt.before, tt.after)
			assert.Equal(t, tt.added, added)
			assert.Equal(t, tt.removed, removed)
		})
	}

	t.Run("partition", func(t *testing.T) {
		before := []string{"a", "b", "c", "c"}
		after := []string{"c", "d", "e", "a"}
		added, removed := Diff(before, after)

		got := map[string]bool{}
		for _, v := range Normalize(before) {
			if !slices.Contains(removed, v) {
				got[v] = true
			}
		}
		for _, v := range added {
			got[v] = true
		}
		want := map[string]bool{}
		for _, v := range after {
			want[v] = true
		}
		assert.Equal(t, want, got)
	})
}

func TestPlan(t *testing.T) {
	t.Run("no snapshots", func(t *testing.T) {
		assert.Empty(t, Plan(nil, nil))
	})

	t.Run("create unions every field in one mutation", func(t *testing.T) {
		after := &models.Song{ID: "1", Title: "A", Singer: "Alice", Genre: []string{"Pop", "Folk"}}
		muts := Plan(nil, after)
		require.Len(t, muts, 2)
		for _, m := range muts {
			assert.Equal(t, OpUnion, m.Op)
		}
		assert.Contains(t, muts, Mutation{Field: models.FieldSpec{Name: models.FieldGenre, Kind: models.MultiValue}, Op: OpUnion, Values: []string{"Pop", "Folk"}})
	})

	t.Run("delete prunes one value per mutation", func(t *testing.T) {
		before := &models.Song{ID: "1", Title: "A", Genre: []string{"Pop", "Folk"}}
		muts := Plan(before, nil)
		require.Len(t, muts, 2)
		for _, m := range muts {
			assert.Equal(t, OpPrune, m.Op)
			assert.Len(t, m.Values, 1)
		}
	})

	t.Run("untracked fields", func(t *testing.T) {
		before := &models.Song{ID: "1", Title: "A", Lyrics: "la"}
		after := &models.Song{ID: "1", Title: "B", Lyrics: "lo"}
		assert.Empty(t, Plan(before, after))
	})
}

func TestSynchronizer(t *testing.T) {
	ctx := context.Background()

	t.Run("singer rename", func(t *testing.T) {
		index := newFakeIndex()
		index.values[models.FieldSinger] = []string{"Alice"}
		before := &models.Song{ID: "a", Title: "A", Singer: "Alice"}
		songs := newFakeSongs()
		after := &models.Song{ID: "a", Title: "A", Singer: "Bob"}
		songs.put(after)

		s, buf := newTestSynchronizer(index, songs)
		require.NoError(t, s.Sync(ctx, before, after))
		assert.Equal(t, []string{"Bob"}, index.get(models.FieldSinger))
		assert.Contains(t, buf.String(), "categories_metadata synced")
		assert.Contains(t, buf.String(), "songId=a")
	})

	t.Run("idempotent union", func(t *testing.T) {
		index := newFakeIndex()
		after := &models.Song{ID: "a", Title: "A", Genre: []string{"Pop"}}
		songs := newFakeSongs(after)
		s, _ := newTestSynchronizer(index, songs)

		require.NoError(t, s.Sync(ctx, nil, after))
		once := index.get(models.FieldGenre)
		require.NoError(t, s.Sync(ctx, nil, after))
		assert.Equal(t, once, index.get(models.FieldGenre))
	})

	t.Run("liveness keeps shared values", func(t *testing.T) {
		index := newFakeIndex()
		a := &models.Song{ID: "a", Title: "A", Genre: []string{"Folk"}}
		b := &models.Song{ID: "b", Title: "B", Genre: []string{"Folk"}}
		songs := newFakeSongs()
		s, _ := newTestSynchronizer(index, songs)

		for _, song := range []*models.Song{a, b} {
			require.NoError(t, s.Sync(ctx, songs.put(song), song))
		}

		require.NoError(t, s.Sync(ctx, songs.del("a"), nil))
		assert.Equal(t, []string{"Folk"}, index.get(models.FieldGenre))

		require.NoError(t, s.Sync(ctx, songs.del("b"), nil))
		assert.Empty(t, index.get(models.FieldGenre))
	})

	t.Run("redelivery", func(t *testing.T) {
		index := newFakeIndex()
		before := &models.Song{ID: "a", Title: "A", Key: "Am"}
		songs := newFakeSongs()
		s, _ := newTestSynchronizer(index, songs)
		require.NoError(t, s.Sync(ctx, nil, before))

		after := &models.Song{ID: "a", Title: "A", Key: "Dm"}
		songs.put(after)
		for range 3 {
			require.NoError(t, s.Sync(ctx, before, after))
		}
		assert.Equal(t, []string{"Dm"}, index.get(models.FieldKey))
	})

	t.Run("field failure does not stop others", func(t *testing.T) {
		index := newFakeIndex()
		index.failOn = models.FieldGenre
		after := &models.Song{ID: "a", Title: "A", Genre: []string{"Pop"}, Singer: "Alice", Event: []string{"Wedding"}}
		s, buf := newTestSynchronizer(index, newFakeSongs(after))

		err := s.Sync(ctx, nil, after)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrIndexSync))
		assert.Contains(t, err.Error(), "Genre")
		assert.Equal(t, []string{"Alice"}, index.get(models.FieldSinger))
		assert.Equal(t, []string{"Wedding"}, index.get(models.FieldEvent))
		assert.Contains(t, buf.String(), "sync failed")
	})

	t.Run("liveness failure skips removal", func(t *testing.T) {
		index := newFakeIndex()
		index.values[models.FieldSinger] = []string{"Alice"}
		songs := newFakeSongs()
		songs.err = errors.New("timeout")
		s, _ := newTestSynchronizer(index, songs)

		err := s.Sync(ctx, &models.Song{ID: "a", Title: "A", Singer: "Alice"}, nil)
		require.Error(t, err)
		assert.Equal(t, []string{"Alice"}, index.get(models.FieldSinger))
		assert.Zero(t, index.removes)
	})

	t.Run("no snapshots", func(t *testing.T) {
		index := newFakeIndex()
		songs := newFakeSongs()
		s, buf := newTestSynchronizer(index, songs)
		require.NoError(t, s.Sync(ctx, nil, nil))
		assert.Zero(t, index.unions+index.removes+songs.queries)
		assert.Empty(t, buf.String())
	})

	t.Run("HandleChange", func(t *testing.T) {
		index := newFakeIndex()
		after := &models.Song{ID: "a", Title: "A", Theme: []string{"Shabbat"}}
		s, _ := newTestSynchronizer(index, newFakeSongs(after))
		require.NoError(t, s.HandleChange(ctx, models.ChangeEvent{SongID: "a", After: after}))
		assert.Equal(t, []string{"Shabbat"}, index.get(models.FieldTheme))
	})
}

func TestReconciler(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex()
	index.values[models.FieldSinger] = []string{"Alice", "Ghost"}
	index.values[models.FieldGenre] = []string{"Folk"}

	songs := newFakeSongs(
		&models.Song{ID: "a", Title: "A", Singer: "Alice", Genre: []string{"Folk", "Jazz"}},
		&models.Song{ID: "b", Title: "B", Singer: "Bob"},
	)
	s, buf := newTestSynchronizer(index, songs)
	r := NewReconciler(songs, index, s, s.logger)

	report, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Songs)
	assert.True(t, report.Changed())

	assert.ElementsMatch(t, []string{"Alice", "Bob"}, index.get(models.FieldSinger))
	assert.ElementsMatch(t, []string{"Folk", "Jazz"}, index.get(models.FieldGenre))

	var singer FieldReport
	for _, f := range report.Fields {
		if f.Field == models.FieldSinger {
			singer = f
		}
	}
	assert.Equal(t, []string{"Bob"}, singer.Added)
	assert.Equal(t, []string{"Ghost"}, singer.Removed)
	assert.Contains(t, buf.String(), "categories_metadata reconciled")

	again, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestReconcilerRun(t *testing.T) {
	t.Run("logs failed sweeps and keeps ticking", func(t *testing.T) {
		index := newFakeIndex()
		songs := newFakeSongs()
		songs.listErr = errors.New("store offline")
		s, buf := newTestSynchronizer(index, songs)
		r := NewReconciler(songs, index, s, s.logger)

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		defer cancel()

		err := r.Run(ctx, 5*time.Millisecond)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, buf.String(), "categories_metadata sweep failed")
		assert.Contains(t, buf.String(), "store offline")
	})

	t.Run("reconcile wraps list errors", func(t *testing.T) {
		index := newFakeIndex()
		songs := newFakeSongs()
		songs.listErr = errors.New("store offline")
		s, _ := newTestSynchronizer(index, songs)

		_, err := NewReconciler(songs, index, s, s.logger).Reconcile(context.Background())
		assert.ErrorIs(t, err, songs.listErr)
		assert.Contains(t, err.Error(), "failed to list songs")
	})

	t.Run("zero interval disables the loop", func(t *testing.T) {
		index := newFakeIndex()
		songs := newFakeSongs()
		s, _ := newTestSynchronizer(index, songs)

		assert.NoError(t, NewReconciler(songs, index, s, s.logger).Run(context.Background(), 0))
	})
}
