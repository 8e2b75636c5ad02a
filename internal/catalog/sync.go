package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
)

// Outcome of one applied mutation.
type Outcome int

const (
	Applied Outcome = iota
	// Kept means a prune found the value still in use and left the index alone.
	Kept
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Kept:
		return "kept"
	default:
		return "failed"
	}
}

// Result pairs a mutation with its outcome.
type Result struct {
	Mutation Mutation
	Outcome  Outcome
	Err      error
}

// Index is the write side of the category index.
type Index interface {
	UnionCategory(ctx context.Context, field models.Field, values ...string) error
	RemoveCategory(ctx context.Context, field models.Field, value string) error
}

// Liveness answers whether any song still holds a value.
type Liveness interface {
	SongExists(ctx context.Context, field models.FieldSpec, value string) (bool, error)
}

// Recorder observes synchronizer activity. See [github.com/desertthunder/songbook/internal/metrics].
type Recorder interface {
	MutationApplied(field models.Field, op Op, outcome Outcome)
	SyncCompleted(d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) MutationApplied(models.Field, Op, Outcome) {}
func (nopRecorder) SyncCompleted(time.Duration, error)        {}

// Synchronizer applies index mutations.
type Synchronizer struct {
	index    Index
	live     Liveness
	logger   *log.Logger
	recorder Recorder
	limit    int
}

// Option configures a [Synchronizer].
type Option func(*Synchronizer)

// WithConcurrency bounds the number of in-flight store calls. n <= 0 means unbounded.
func WithConcurrency(n int) Option {
	return func(s *Synchronizer) { s.limit = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewSynchronizer creates a Synchronizer writing to index and checking liveness with live.
func NewSynchronizer(index Index, live Liveness, logger *log.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		index:    index,
		live:     live,
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync brings the index in line with a write that turned before into after.
func (s *Synchronizer) Sync(ctx context.Context, before, after *models.Song) error {
	if before == nil && after == nil {
		return nil
	}

	start := time.Now()
	_, err := s.Apply(ctx, Plan(before, after))
	s.recorder.SyncCompleted(time.Since(start), err)

	var songID string
	if after != nil {
		songID = after.ID
	}
	if songID == "" && before != nil {
		songID = before.ID
	}
	if err != nil {
		s.logger.Error("categories_metadata sync failed", "songId", songID, "error", err)
		return err
	}
	s.logger.Info("categories_metadata synced", "songId", songID)
	return nil
}

// HandleChange syncs the index for a change event.
func (s *Synchronizer) HandleChange(ctx context.Context, ev models.ChangeEvent) error {
	return s.Sync(ctx, ev.Before, ev.After)
}

// Apply runs every mutation concurrently and waits for all of them. The returned
// error joins every failure and wraps [shared.ErrIndexSync].
func (s *Synchronizer) Apply(ctx context.Context, muts []Mutation) ([]Result, error) {
	results := make([]Result, len(muts))

	var g errgroup.Group
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	for i, m := range muts {
		g.Go(func() error {
			outcome, err := s.apply(ctx, m)
			if err != nil {
				err = fmt.Errorf("%s: %w", m, err)
			}
			results[i] = Result{Mutation: m, Outcome: outcome, Err: err}
			s.recorder.MutationApplied(m.Field.Name, m.Op, outcome)
			return nil
		})
	}
	_ = g.Wait()

	errs := make([]error, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("%w: %w", shared.ErrIndexSync, errors.Join(errs...))
	}
	return results, nil
}

func (s *Synchronizer) apply(ctx context.Context, m Mutation) (Outcome, error) {
	switch m.Op {
	case OpUnion:
		if err := s.index.UnionCategory(ctx, m.Field.Name, m.Values...); err != nil {
			return Failed, err
		}
		return Applied, nil
	case OpPrune:
		value := m.Values[0]
		inUse, err := s.live.SongExists(ctx, m.Field, value)
		if err != nil {
			return Failed, fmt.Errorf("liveness check: %w", err)
		}
		if inUse {
			return Kept, nil
		}
		if err := s.index.RemoveCategory(ctx, m.Field.Name, value); err != nil {
			return Failed, err
		}
		return Applied, nil
	default:
		return Failed, fmt.Errorf("%w: unknown op %d", shared.ErrInvalidInput, int(m.Op))
	}
}
