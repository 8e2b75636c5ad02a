package tasks

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dhowden/tag"
	"golang.org/x/time/rate"

	"github.com/desertthunder/songbook/internal/beat"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

// Row is one imported record keyed by column name. CSV cells hold one value;
// JSON arrays hold several.
type Row map[string][]string

// titleColumns are tried in order for the song title. Spreadsheet exports use "Song".
var titleColumns = []string{"Song", "title", "Title"}

func (r Row) lookup(names ...string) []string {
	for _, n := range names {
		if v, ok := r[n]; ok {
			return v
		}
	}
	for _, n := range names {
		for k, v := range r {
			if strings.EqualFold(strings.TrimSpace(k), n) {
				return v
			}
		}
	}
	return nil
}

func (r Row) scalar(names ...string) string {
	for _, v := range r.lookup(names...) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (r Row) list(name string) []string {
	var out []string
	for _, v := range r.lookup(name) {
		out = append(out, shared.SplitAndClean(v)...)
	}
	return out
}

func (r Row) beat() []string {
	cells := r.lookup(string(models.FieldBeat))
	if len(cells) == 1 {
		return beat.Split(cells[0])
	}
	return beat.Split(cells)
}

// Song builds a song from the row. List cells are comma split and Beat cells go
// through [beat.Split].
func (r Row) Song() (*models.Song, error) {
	s := &models.Song{
		ID:       r.scalar("id", "ID"),
		Title:    r.scalar(titleColumns...),
		Key:      r.scalar(string(models.FieldKey)),
		Singer:   r.scalar(string(models.FieldSinger)),
		Composer: r.scalar(string(models.FieldComposer)),
		Hasidut:  r.scalar(string(models.FieldHasidut)),
		Lyrics:   strings.TrimSpace(strings.Join(r.lookup("Lyrics"), "\n")),
		Beat:     r.beat(),
		Theme:    r.list(string(models.FieldTheme)),
		Season:   r.list(string(models.FieldSeason)),
		Event:    r.list(string(models.FieldEvent)),
		Genre:    r.list(string(models.FieldGenre)),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeCSV reads rows from CSV with a header line.
func DecodeCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV: %v", shared.ErrImport, err)
	}
	if len(records) == 0 {
		return []Row{}, nil
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		blank := true
		for i, col := range header {
			if i >= len(rec) {
				break
			}
			row[col] = []string{rec[i]}
			if strings.TrimSpace(rec[i]) != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// DecodeJSON reads rows from a JSON array of objects. Values may be strings,
// numbers or arrays of strings.
func DecodeJSON(r io.Reader) ([]Row, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode JSON: %v", shared.ErrImport, err)
	}

	rows := make([]Row, 0, len(raw))
	for _, obj := range raw {
		row := make(Row, len(obj))
		for k, v := range obj {
			switch v := v.(type) {
			case nil:
			case string:
				row[k] = []string{v}
			case []any:
				cells := make([]string, 0, len(v))
				for _, item := range v {
					if item != nil {
						cells = append(cells, fmt.Sprint(item))
					}
				}
				row[k] = cells
			default:
				row[k] = []string{fmt.Sprint(v)}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DecodeAudio reads a row from the metadata tags of an audio file.
func DecodeAudio(r io.ReadSeeker) (Row, error) {
	m, err := tag.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read metadata: %v", shared.ErrImport, err)
	}

	row := Row{
		"title":    {m.Title()},
		"Singer":   {m.Artist()},
		"Composer": {m.Composer()},
		"Genre":    {m.Genre()},
		"Lyrics":   {m.Lyrics()},
	}
	if row.scalar("title") == "" {
		row["title"] = []string{m.Album()}
	}
	return row, nil
}

// audioExtensions are the containers [tag.ReadFrom] understands.
var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".m4b": true, ".flac": true, ".ogg": true, ".dsf": true,
}

// DecodeFile reads rows from path, choosing the decoder by extension.
func DecodeFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrImport, err)
	}
	defer func() { _ = f.Close() }()

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".csv":
		return DecodeCSV(f)
	case ext == ".json":
		return DecodeJSON(f)
	case audioExtensions[ext]:
		row, err := DecodeAudio(f)
		if err != nil {
			return nil, err
		}
		return []Row{row}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", shared.ErrImport, ext)
	}
}

// ImportRecorder counts imported rows.
type ImportRecorder interface {
	RowImported(err error)
}

type nopImportRecorder struct{}

func (nopImportRecorder) RowImported(error) {}

// ImportOpts configures an import run.
type ImportOpts struct {
	RateLimit float64 // Writes per second (default: unlimited)
	DryRun    bool    // Parse and validate without writing
}

// RowError is a failed row, numbered from 1.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// ImportResult summarizes an import.
type ImportResult struct {
	Total   int
	Created int
	Updated int
	Failed  []RowError
}

// Importer writes rows to the song store. Rows carrying the id of an existing song
// update it; every other row creates a song.
type Importer struct {
	songs    store.SongStore
	logger   *log.Logger
	recorder ImportRecorder
}

// NewImporter creates an Importer. recorder may be nil.
func NewImporter(songs store.SongStore, logger *log.Logger, recorder ImportRecorder) *Importer {
	if recorder == nil {
		recorder = nopImportRecorder{}
	}
	return &Importer{songs: songs, logger: logger, recorder: recorder}
}

// Import writes rows in order. Failing rows are collected and skipped; the
// returned error is set only when the run itself stops.
func (im *Importer) Import(ctx context.Context, prog chan<- ProgressUpdate, rows []Row, opts ImportOpts) (*ImportResult, error) {
	result := &ImportResult{Total: len(rows)}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	for i, row := range rows {
		step := i + 1
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return result, err
			}
		}

		action, title, err := im.importRow(ctx, row, opts.DryRun)
		im.recorder.RowImported(err)
		if err != nil {
			result.Failed = append(result.Failed, RowError{Row: step, Err: err})
			im.logger.Warn("import row failed", "row", step, "error", err)
			sendProgress(prog, importFailedUpdate(step, len(rows), err))
			continue
		}

		switch action {
		case "Updated":
			result.Updated++
		default:
			result.Created++
		}
		sendProgress(prog, importRowUpdate(step, len(rows), title, action))
	}

	im.logger.Info("import finished", "total", result.Total, "created", result.Created, "updated", result.Updated, "failed", len(result.Failed))
	return result, nil
}

func (im *Importer) importRow(ctx context.Context, row Row, dryRun bool) (action, title string, err error) {
	song, err := row.Song()
	if err != nil {
		return "", "", err
	}

	update := false
	if song.ID != "" {
		_, err := im.songs.GetSong(ctx, song.ID)
		switch {
		case err == nil:
			update = true
		case !errors.Is(err, shared.ErrNotFound):
			return "", song.Title, err
		}
	}

	if update {
		action = "Updated"
	} else {
		action = "Created"
	}
	if dryRun {
		return action, song.Title, nil
	}

	if update {
		err = im.songs.UpdateSong(ctx, song)
	} else {
		err = im.songs.CreateSong(ctx, song)
	}
	return action, song.Title, err
}

// ImportFiles decodes every path and imports the combined rows. A file that cannot
// be decoded fails the run before anything is written.
func (im *Importer) ImportFiles(ctx context.Context, prog chan<- ProgressUpdate, paths []string, opts ImportOpts) (*ImportResult, error) {
	var rows []Row
	for i, p := range paths {
		decoded, err := DecodeFile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		rows = append(rows, decoded...)
		sendProgress(prog, readSourceUpdate(i+1, len(paths), filepath.Base(p), len(decoded)))
	}
	return im.Import(ctx, prog, rows, opts)
}
