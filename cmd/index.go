package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songbook/internal/catalog"
	"github.com/desertthunder/songbook/internal/listing"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

// pendingCounter is implemented by stores that can report their change feed backlog.
type pendingCounter interface {
	CountPendingChanges(ctx context.Context) (int, error)
}

// drain processes pending change events into the configured index.
func (r *Runner) drain(ctx context.Context, st store.Store) (int, error) {
	idx, err := r.openIndex(ctx, st)
	if err != nil {
		return 0, err
	}
	return r.watcher(st, r.synchronizer(idx, st)).Drain(ctx)
}

// IndexShow prints the indexed values of every field, or of the field argument.
func (r *Runner) IndexShow(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	idx, err := r.openIndex(ctx, st)
	if err != nil {
		return err
	}

	var entries []*models.CategoryIndex
	if name := cmd.Args().First(); name != "" {
		fs, ok := models.LookupField(name)
		if !ok {
			return fmt.Errorf("%w: %s", shared.ErrInvalidField, name)
		}
		entry, err := idx.GetCategory(ctx, fs.Name)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			entry = &models.CategoryIndex{Field: fs.Name}
		case err != nil:
			return err
		}
		entries = []*models.CategoryIndex{entry}
	} else if entries, err = idx.ListCategories(ctx); err != nil {
		return err
	}

	for _, e := range entries {
		listing.SortStrings(e.Values)
	}
	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	r.writePlainHeader("Category index")
	for _, e := range entries {
		r.writePlain("%-9s (%d) %s\n", e.Field, len(e.Values), strings.Join(e.Values, ", "))
	}
	return nil
}

// IndexDrain processes every pending change event once.
func (r *Runner) IndexDrain(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	n, err := r.drain(ctx, st)
	if err != nil {
		return err
	}
	r.writePlain("✓ %d change events processed\n", n)

	if pc, ok := st.(pendingCounter); ok {
		pending, err := pc.CountPendingChanges(ctx)
		if err != nil {
			return err
		}
		r.writePlain("Pending: %d\n", pending)
	}
	return nil
}

// IndexReconcile runs one full sweep and prints what it changed.
func (r *Runner) IndexReconcile(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	idx, err := r.openIndex(ctx, st)
	if err != nil {
		return err
	}

	report, err := catalog.NewReconciler(st, idx, r.synchronizer(idx, st), r.logger).Reconcile(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader("Reconcile")
	r.writePlain("Songs scanned: %d (%s)\n", report.Songs, report.Duration)
	if !report.Changed() {
		r.writePlain("Index is up to date\n")
	}
	for _, f := range report.Fields {
		for _, v := range f.Added {
			r.writePlain("+ %s: %s\n", f.Field, v)
		}
		for _, v := range f.Removed {
			r.writePlain("- %s: %s\n", f.Field, v)
		}
		for _, v := range f.Kept {
			r.writePlain("= %s: %s (still in use)\n", f.Field, v)
		}
	}
	return nil
}
