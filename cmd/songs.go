package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songbook/internal/formatter"
	"github.com/desertthunder/songbook/internal/listing"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/search"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
	"github.com/desertthunder/songbook/internal/tasks"
)

func songFilter(cmd *cli.Command) (store.SongFilter, error) {
	name := cmd.String("field")
	if name == "" {
		return store.SongFilter{}, nil
	}
	fs, ok := models.LookupField(name)
	if !ok {
		return store.SongFilter{}, fmt.Errorf("%w: %s", shared.ErrInvalidField, name)
	}
	return store.SongFilter{Field: fs.Name, Value: cmd.String("value")}, nil
}

func (r *Runner) sortOptions(cmd *cli.Command) listing.Options {
	opts := r.listingOptions()
	opts.ByBeat = cmd.Bool("sort-beat")
	opts.ByKey = cmd.Bool("sort-key")
	opts.MusicalKeys = cmd.Bool("musical")
	return opts
}

// SongsList prints songs matching the filter flags in the chosen format.
//
// With --with-index the full-text index answers --query and results keep their
// relevance order.
func (r *Runner) SongsList(ctx context.Context, cmd *cli.Command) error {
	filter, err := songFilter(cmd)
	if err != nil {
		return err
	}
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	query := cmd.String("query")
	var songs []*models.Song
	if cmd.Bool("with-index") {
		if query == "" {
			return fmt.Errorf("%w: --with-index needs --query", shared.ErrMissingArgument)
		}
		if songs, err = r.searchSongs(ctx, st, query); err != nil {
			return err
		}
		if filter.Field != "" {
			fs, _ := models.LookupField(string(filter.Field))
			songs = listing.FilterByField(songs, fs, filter.Value)
		}
	} else {
		if songs, err = st.ListSongs(ctx, filter); err != nil {
			return err
		}
		songs = listing.Search(songs, query)
		listing.Sort(songs, r.sortOptions(cmd))
	}
	songs = listing.FilterByBeat(songs, cmd.String("beat"))

	data, err := formatter.Render(cmd.String("format"), "Songs", songs)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) searchSongs(ctx context.Context, st store.Store, query string) ([]*models.Song, error) {
	idx, err := r.openSearch(ctx, st)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	ids, err := idx.Search(ctx, query, search.DefaultLimit)
	if err != nil {
		return nil, err
	}
	return st.GetSongsByIDs(ctx, ids)
}

// SongsImport imports every file argument and, unless --sync=false, drains the
// resulting change events into the category index.
func (r *Runner) SongsImport(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one file is required", shared.ErrMissingArgument)
	}
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	opts := tasks.ImportOpts{RateLimit: cmd.Float("rate-limit"), DryRun: cmd.Bool("dry-run")}
	importer := tasks.NewImporter(st, r.logger, r.metrics)

	prog := make(chan tasks.ProgressUpdate, 100)
	done := make(chan struct{})
	go r.follow(prog, done)
	result, err := importer.ImportFiles(ctx, prog, paths, opts)
	close(prog)
	<-done
	if err != nil {
		return err
	}

	title := "Import"
	if opts.DryRun {
		title = "Import (dry run)"
	}
	r.writePlainHeader(title)
	r.writePlain("Rows:    %d\nCreated: %d\nUpdated: %d\nFailed:  %d\n", result.Total, result.Created, result.Updated, len(result.Failed))
	for _, f := range result.Failed {
		r.writePlain("  • %v\n", f)
	}

	if cmd.Bool("sync") && !opts.DryRun {
		n, err := r.drain(ctx, st)
		if err != nil {
			return err
		}
		r.writePlain("Index:   %d change events processed\n", n)
	}
	return nil
}

// SongsExport exports the catalog and the named playlists through the sink.
func (r *Runner) SongsExport(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	sink, err := r.sink(ctx, cmd.String("dir"))
	if err != nil {
		return err
	}

	opts := tasks.BulkExportOpts{
		Format:      cmd.String("format"),
		PlaylistIDs: cmd.StringSlice("playlist"),
		SkipSongs:   cmd.Bool("skip-songs"),
		NumWorkers:  cmd.Int("workers"),
		RateLimit:   cmd.Float("rate-limit"),
		Sort:        r.sortOptions(cmd),
	}
	exporter := tasks.NewExporter(st, st, r.logger)

	prog := make(chan tasks.ProgressUpdate, 100)
	done := make(chan struct{})
	go r.follow(prog, done)
	result, err := exporter.BulkExport(ctx, prog, sink, opts)
	close(prog)
	<-done
	if err != nil {
		return err
	}

	r.writePlainHeader("Export")
	for _, res := range result.Results {
		if res.Error != nil {
			r.writePlain("✗ %s: %v\n", res.Name, res.Error)
			continue
		}
		r.writePlain("✓ %s (%d songs) → %s\n", res.Name, res.Songs, res.Location)
	}
	r.writePlain("Manifest: %s\n", result.ManifestLocation)

	if result.Failed > 0 {
		return fmt.Errorf("%w: %d of %d files failed", shared.ErrExport, result.Failed, len(result.Results))
	}
	return nil
}
