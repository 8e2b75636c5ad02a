package tasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/songbook/internal/catalog"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	th "github.com/desertthunder/songbook/internal/testing"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	fail map[string]int // song id -> remaining failures, -1 fails forever
}

func (h *recordingHandler) HandleChange(_ context.Context, ev models.ChangeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, ev.SongID)
	if n, ok := h.fail[ev.SongID]; ok && n != 0 {
		if n > 0 {
			h.fail[ev.SongID] = n - 1
		}
		return errors.New("handler unavailable")
	}
	return nil
}

type resultCounter map[string]int

func (r resultCounter) ChangeProcessed(result string) { r[result]++ }

func TestWatcher_Drain(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	t.Run("delivers in commit order", func(t *testing.T) {
		s := th.NewTestStore(t)
		th.SeedSongs(t, s, th.SampleSongs())
		if err := s.DeleteSong(ctx, "s2"); err != nil {
			t.Fatalf("DeleteSong() error = %v", err)
		}

		h := &recordingHandler{}
		counts := resultCounter{}
		w := NewWatcher(s, []ChangeHandler{h}, logger, WithBatchSize(2), WithChangeRecorder(counts))

		n, err := w.Drain(ctx)
		if err != nil {
			t.Fatalf("Drain() error = %v", err)
		}
		if n != 5 {
			t.Errorf("processed = %d, want 5", n)
		}
		if want := []string{"s1", "s2", "s3", "s4", "s2"}; !slices.Equal(h.seen, want) {
			t.Errorf("seen = %v, want %v", h.seen, want)
		}
		if counts[ResultAcked] != 5 {
			t.Errorf("acked = %d, want 5", counts[ResultAcked])
		}

		pending, err := s.CountPendingChanges(ctx)
		if err != nil || pending != 0 {
			t.Errorf("pending = %d, %v", pending, err)
		}
	})

	t.Run("failure blocks later events", func(t *testing.T) {
		s := th.NewTestStore(t)
		th.SeedSongs(t, s, th.SampleSongs()[:3])

		h := &recordingHandler{fail: map[string]int{"s2": 1}}
		counts := resultCounter{}
		w := NewWatcher(s, []ChangeHandler{h}, logger, WithMaxAttempts(3), WithChangeRecorder(counts))

		n, err := w.Drain(ctx)
		if err == nil {
			t.Fatal("Drain() should report the failing event")
		}
		if n != 1 {
			t.Errorf("processed = %d, want 1", n)
		}
		if slices.Contains(h.seen, "s3") {
			t.Error("s3 must wait behind s2")
		}

		n, err = w.Drain(ctx)
		if err != nil {
			t.Fatalf("second Drain() error = %v", err)
		}
		if n != 2 {
			t.Errorf("processed = %d, want 2", n)
		}
		if counts[ResultFailed] != 1 || counts[ResultAcked] != 3 {
			t.Errorf("counts = %v", counts)
		}
	})

	t.Run("dead after max attempts", func(t *testing.T) {
		s := th.NewTestStore(t)
		th.SeedSongs(t, s, th.SampleSongs()[:2])

		h := &recordingHandler{fail: map[string]int{"s1": -1}}
		counts := resultCounter{}
		var logs bytes.Buffer
		w := NewWatcher(s, []ChangeHandler{h}, shared.NewLogger(&logs), WithMaxAttempts(2), WithChangeRecorder(counts))

		if _, err := w.Drain(ctx); err == nil {
			t.Fatal("first Drain() should fail")
		}
		n, err := w.Drain(ctx)
		if err != nil {
			t.Fatalf("second Drain() error = %v", err)
		}
		if n != 2 {
			t.Errorf("processed = %d, want 2", n)
		}
		if counts[ResultDead] != 1 || counts[ResultAcked] != 1 || counts[ResultFailed] != 1 {
			t.Errorf("counts = %v", counts)
		}
		for _, want := range []string{"change event failed", "change event dropped", "songId=s1", "changeId=1", "op=create"} {
			if !strings.Contains(logs.String(), want) {
				t.Errorf("logs missing %q:\n%s", want, logs.String())
			}
		}
	})

	t.Run("every handler sees the event", func(t *testing.T) {
		s := th.NewTestStore(t)
		th.SeedSongs(t, s, th.SampleSongs()[:1])

		first := &recordingHandler{fail: map[string]int{"s1": 1}}
		second := &recordingHandler{}
		w := NewWatcher(s, []ChangeHandler{first, second}, logger)

		_, _ = w.Drain(ctx)
		if _, err := w.Drain(ctx); err != nil {
			t.Fatalf("Drain() error = %v", err)
		}
		if len(second.seen) != 2 {
			t.Errorf("second handler saw %v, want two deliveries", second.seen)
		}
	})
}

func TestWatcher_CategorySync(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	s := th.NewTestStore(t)
	th.SeedSongs(t, s, th.SampleSongs())

	syncer := catalog.NewSynchronizer(s, s, logger)
	w := NewWatcher(s, []ChangeHandler{syncer}, logger)
	if _, err := w.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	singers, err := s.GetCategory(ctx, models.FieldSinger)
	if err != nil {
		t.Fatalf("GetCategory() error = %v", err)
	}
	if !slices.Equal(singers.Values, []string{"Alice", "Bob"}) {
		t.Errorf("Singer = %v", singers.Values)
	}

	if err := s.DeleteSong(ctx, "s2"); err != nil {
		t.Fatalf("DeleteSong() error = %v", err)
	}
	if _, err := w.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	singers, err = s.GetCategory(ctx, models.FieldSinger)
	if err != nil {
		t.Fatalf("GetCategory() error = %v", err)
	}
	if !slices.Equal(singers.Values, []string{"Alice"}) {
		t.Errorf("Singer after delete = %v, want [Alice]", singers.Values)
	}
}

func TestWatcher_Run(t *testing.T) {
	s := th.NewTestStore(t)
	th.SeedSongs(t, s, th.SampleSongs()[:1])

	var calls []string
	var mu sync.Mutex
	handler := ChangeHandlerFunc(func(_ context.Context, ev models.ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, ev.SongID)
		return nil
	})

	progressCh := make(chan ProgressUpdate, 10)
	w := NewWatcher(s, []ChangeHandler{handler}, shared.NewLogger(io.Discard),
		WithPollInterval(10*time.Millisecond), WithProgress(progressCh))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	select {
	case u := <-progressCh:
		if u.Phase != WatchChanges {
			t.Errorf("phase = %v", u.Phase)
		}
	case <-ctx.Done():
		t.Fatal("no change delivered")
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(calls, []string{"s1"}) {
		t.Errorf("calls = %v", calls)
	}
}
