package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/store"
)

// SongLister lists songs for a full sweep.
type SongLister interface {
	ListSongs(ctx context.Context, filter store.SongFilter) ([]*models.Song, error)
}

// IndexReader reads the whole index.
type IndexReader interface {
	ListCategories(ctx context.Context) ([]*models.CategoryIndex, error)
}

// FieldReport lists what a sweep changed in one field.
type FieldReport struct {
	Field   models.Field `json:"field"`
	Added   []string     `json:"added,omitempty"`
	Removed []string     `json:"removed,omitempty"`
	Kept    []string     `json:"kept,omitempty"`
}

// Report summarizes a sweep.
type Report struct {
	Songs    int           `json:"songs"`
	Fields   []FieldReport `json:"fields"`
	Duration time.Duration `json:"duration"`
}

// Changed reports whether the sweep touched the index.
func (r *Report) Changed() bool {
	for _, f := range r.Fields {
		if len(f.Added) > 0 || len(f.Removed) > 0 {
			return true
		}
	}
	return false
}

// Reconciler repairs the index from a full scan of the song collection.
type Reconciler struct {
	songs  SongLister
	index  IndexReader
	sync   *Synchronizer
	logger *log.Logger
}

// NewReconciler creates a Reconciler. Repairs go through sync so stale values are
// re-checked for liveness right before removal.
func NewReconciler(songs SongLister, index IndexReader, sync *Synchronizer, logger *log.Logger) *Reconciler {
	return &Reconciler{songs: songs, index: index, sync: sync, logger: logger}
}

// Reconcile unions values in use but missing from the index and prunes indexed
// values no song holds.
func (r *Reconciler) Reconcile(ctx context.Context) (*Report, error) {
	start := time.Now()

	songs, err := r.songs.ListSongs(ctx, store.SongFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	entries, err := r.index.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	have := make(map[models.Field][]string, len(entries))
	for _, e := range entries {
		have[e.Field] = e.Values
	}

	var muts []Mutation
	for _, f := range models.CategoryFields() {
		var inUse []string
		for _, s := range songs {
			inUse = append(inUse, s.Values(f.Name)...)
		}
		missing, stale := Diff(have[f.Name], inUse)
		if len(missing) > 0 {
			muts = append(muts, Mutation{Field: f, Op: OpUnion, Values: missing})
		}
		for _, v := range stale {
			muts = append(muts, Mutation{Field: f, Op: OpPrune, Values: []string{v}})
		}
	}

	results, err := r.sync.Apply(ctx, muts)
	report := &Report{Songs: len(songs), Fields: summarize(results), Duration: time.Since(start)}
	if err != nil {
		return report, err
	}

	r.logger.Info("categories_metadata reconciled", "songs", report.Songs, "changed", report.Changed(), "duration", report.Duration)
	return report, nil
}

func summarize(results []Result) []FieldReport {
	byField := map[models.Field]*FieldReport{}
	var order []models.Field
	for _, res := range results {
		name := res.Mutation.Field.Name
		fr, ok := byField[name]
		if !ok {
			fr = &FieldReport{Field: name}
			byField[name] = fr
			order = append(order, name)
		}
		if res.Outcome == Failed {
			continue
		}
		switch {
		case res.Mutation.Op == OpUnion:
			fr.Added = append(fr.Added, res.Mutation.Values...)
		case res.Outcome == Kept:
			fr.Kept = append(fr.Kept, res.Mutation.Values...)
		default:
			fr.Removed = append(fr.Removed, res.Mutation.Values...)
		}
	}

	out := make([]FieldReport, 0, len(order))
	for _, name := range order {
		out = append(out, *byField[name])
	}
	slices.SortFunc(out, func(a, b FieldReport) int {
		return cmp.Compare(a.Field, b.Field)
	})
	return out
}

// Run reconciles every interval until ctx is done. Sweep failures are logged and
// retried on the next tick.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("categories_metadata sweep failed", "error", err)
			}
		}
	}
}
