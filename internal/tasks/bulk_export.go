package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/songbook/internal/formatter"
	"github.com/desertthunder/songbook/internal/listing"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

// ManifestName is the manifest file written after every export.
const ManifestName = "export_manifest.json"

// Sink stores exported files and returns their location.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// DirSink writes exports below a local directory.
type DirSink struct {
	Dir string
}

// Put writes data to Dir/name, creating directories as needed.
func (d DirSink) Put(_ context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(d.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create output directory: %v", shared.ErrExport, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrExport, err)
	}
	return path, nil
}

// BulkExportOpts contains configuration for bulk exports.
type BulkExportOpts struct {
	Format      string         // Export format: json, csv, markdown, txt
	PlaylistIDs []string       // Playlists to export alongside the catalog
	SkipSongs   bool           // Leave the full catalog out
	NumWorkers  int            // Concurrent workers (default: 5, max: 10)
	RateLimit   float64        // Jobs per second (default: 5)
	Sort        listing.Options
}

// ExportFileResult is the outcome of one exported file.
type ExportFileResult struct {
	Name     string
	Location string
	Songs    int
	Error    error

	phase Phase
}

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	Manifest         formatter.Manifest
	ManifestLocation string
	Results          []ExportFileResult
	Successful       int
	Failed           int
}

type exportJob struct {
	phase    Phase
	step     int
	name     string
	title    string
	playlist *models.Playlist
}

// Exporter renders songs and playlists into a [Sink].
type Exporter struct {
	songs     store.SongStore
	playlists store.PlaylistStore
	logger    *log.Logger
	now       func() time.Time
}

// NewExporter creates an Exporter. playlists may be nil when only the catalog is
// exported.
func NewExporter(songs store.SongStore, playlists store.PlaylistStore, logger *log.Logger) *Exporter {
	return &Exporter{songs: songs, playlists: playlists, logger: logger, now: time.Now}
}

// BulkExport exports the catalog and playlists concurrently with rate limiting
// and progress tracking.
//
// Each job renders one file. Failed jobs are recorded and the rest continue.
// A manifest summarizing every file is written last.
func (e *Exporter) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, sink Sink, opts BulkExportOpts) (*BulkExportResult, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: no export destination", shared.ErrExport)
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if len(opts.PlaylistIDs) > 0 && e.playlists == nil {
		return nil, fmt.Errorf("%w: playlist store not configured", shared.ErrExport)
	}

	var queue []exportJob
	if !opts.SkipSongs {
		queue = append(queue, exportJob{phase: ExportSongs, name: "songs" + formatter.Extension(opts.Format), title: "Songs"})
	}
	for _, id := range opts.PlaylistIDs {
		queue = append(queue, exportJob{phase: ExportPlaylists, playlist: &models.Playlist{ID: id}, name: id, title: id})
	}
	total := len(queue)

	result := &BulkExportResult{
		Results: make([]ExportFileResult, 0, total),
		Manifest: formatter.Manifest{
			ExportedAt: e.now().UTC(),
			Format:     opts.Format,
			Playlists:  len(opts.PlaylistIDs),
		},
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan exportJob, total)
	results := make(chan ExportFileResult, total)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, sink, opts)
	}

	go func() {
		defer close(jobs)
		for i, job := range queue {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			job.step = i + 1
			sendProgress(prog, exportingUpdate(job.phase, job.step, total, job.title))
			jobs <- job
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		phase := res.phase
		if phase == ExportSongs {
			result.Manifest.Songs = res.Songs
		}

		if res.Error == nil {
			result.Successful++
			result.Manifest.Files = append(result.Manifest.Files, res.Location)
			sendProgress(prog, exportCompletedUpdate(phase, completed, total, res.Name, res.Songs))
		} else {
			result.Failed++
			result.Manifest.Failures = append(result.Manifest.Failures, fmt.Sprintf("%s: %v", res.Name, res.Error))
			e.logger.Warn("export failed", "file", res.Name, "error", res.Error)
			sendProgress(prog, exportFailedUpdate(phase, completed, total, res.Name, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	data, err := formatter.ToManifestJSON(result.Manifest)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to render manifest: %w", err)
	}
	location, err := sink.Put(ctx, ManifestName, data)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestLocation = location
	sendProgress(prog, manifestUpdate(location))

	e.logger.Info("export finished", "files", result.Successful, "failed", result.Failed, "manifest", location)
	return result, nil
}

// exportWorker is a worker goroutine that renders jobs from the jobs channel.
func (e *Exporter) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- ExportFileResult,
	sink Sink,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- e.exportOne(ctx, job, sink, opts)
	}
}

// exportOne renders a single file in the requested format.
func (e *Exporter) exportOne(ctx context.Context, j exportJob, sink Sink, opts BulkExportOpts) ExportFileResult {
	res := ExportFileResult{Name: j.name, phase: j.phase}

	var (
		songs []*models.Song
		err   error
	)
	if j.playlist == nil {
		songs, err = e.songs.ListSongs(ctx, store.SongFilter{})
		if err == nil {
			listing.Sort(songs, opts.Sort)
		}
	} else {
		var p *models.Playlist
		p, err = e.playlists.GetPlaylist(ctx, j.playlist.ID)
		if err == nil {
			j.title = p.Name
			res.Name = formatter.PlaylistFilename(p, opts.Format)
			songs, err = e.songs.GetSongsByIDs(ctx, p.SongIDs)
		}
	}
	if err != nil {
		res.Error = fmt.Errorf("failed to load songs: %w", err)
		return res
	}
	res.Songs = len(songs)

	data, err := formatter.Render(opts.Format, j.title, songs)
	if err != nil {
		res.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return res
	}

	location, err := sink.Put(ctx, res.Name, data)
	if err != nil {
		res.Error = err
		return res
	}
	res.Location = location
	return res
}
