package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/songbook/internal/formatter"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/repositories"
	"github.com/desertthunder/songbook/internal/shared"
	th "github.com/desertthunder/songbook/internal/testing"
)

func drain(ch chan ProgressUpdate) func() []ProgressUpdate {
	done := make(chan []ProgressUpdate)
	go func() {
		var got []ProgressUpdate
		for u := range ch {
			got = append(got, u)
		}
		done <- got
	}()
	return func() []ProgressUpdate {
		close(ch)
		return <-done
	}
}

func seedExportStore(t *testing.T) (*repositories.Store, []string) {
	t.Helper()
	s := th.NewTestStore(t)
	th.SeedSongs(t, s, th.SampleSongs())

	ctx := context.Background()
	var ids []string
	for _, pl := range []struct {
		name  string
		songs []string
	}{
		{"Chuppah", []string{"s2", "s1"}},
		{"Shabbos", []string{"s4", "missing"}},
	} {
		p := &models.Playlist{OwnerUID: "u1", Name: pl.name}
		if err := s.CreatePlaylist(ctx, p); err != nil {
			t.Fatalf("CreatePlaylist() error = %v", err)
		}
		for _, id := range pl.songs {
			if err := s.AddPlaylistSong(ctx, p.ID, id); err != nil {
				t.Fatalf("AddPlaylistSong() error = %v", err)
			}
		}
		ids = append(ids, p.ID)
	}
	return s, ids
}

func TestBulkExport_SuccessfulExport(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		playlists bool
		wantFiles int
		validate  func(t *testing.T, dir string, result *BulkExportResult)
	}{
		{
			name:      "catalog json export",
			format:    formatter.FormatJSON,
			wantFiles: 1,
			validate: func(t *testing.T, dir string, result *BulkExportResult) {
				data := th.MustReadFile(t, filepath.Join(dir, "songs.json"))
				var songs []*models.Song
				if err := json.Unmarshal([]byte(data), &songs); err != nil {
					t.Fatalf("failed to parse export: %v", err)
				}
				if len(songs) != 4 {
					t.Errorf("exported %d songs, want 4", len(songs))
				}
				if result.Manifest.Songs != 4 {
					t.Errorf("manifest songs = %d, want 4", result.Manifest.Songs)
				}
			},
		},
		{
			name:      "catalog and playlists csv export",
			format:    formatter.FormatCSV,
			playlists: true,
			wantFiles: 3,
			validate: func(t *testing.T, dir string, result *BulkExportResult) {
				th.AssertFileExists(t, filepath.Join(dir, "songs.csv"))
				for _, res := range result.Results {
					if res.Name == "songs.csv" {
						continue
					}
					if !strings.HasPrefix(res.Name, "playlist_") {
						t.Errorf("unexpected file name %q", res.Name)
					}
					th.AssertFileExists(t, res.Location)
				}
			},
		},
		{
			name:      "markdown export",
			format:    formatter.FormatMarkdown,
			playlists: true,
			wantFiles: 3,
			validate: func(t *testing.T, dir string, result *BulkExportResult) {
				var found bool
				for _, res := range result.Results {
					if res.Songs == 2 && strings.HasSuffix(res.Name, ".md") {
						content := th.MustReadFile(t, res.Location)
						if !strings.Contains(content, "# Chuppah") && !strings.Contains(content, "# Shabbos") {
							t.Errorf("playlist title missing from %s", res.Name)
						}
						found = true
					}
				}
				if !found {
					t.Error("expected a two-song playlist export")
				}
			},
		},
		{
			name:      "text export",
			format:    formatter.FormatText,
			wantFiles: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, playlistIDs := seedExportStore(t)
			dir := t.TempDir()

			opts := BulkExportOpts{Format: tt.format, NumWorkers: 2, RateLimit: 100}
			if tt.playlists {
				opts.PlaylistIDs = playlistIDs
			}

			progressCh := make(chan ProgressUpdate, 100)
			collect := drain(progressCh)

			exporter := NewExporter(s, s, shared.NewLogger(io.Discard))
			result, err := exporter.BulkExport(context.Background(), progressCh, DirSink{Dir: dir}, opts)
			updates := collect()

			if err != nil {
				t.Fatalf("BulkExport() error = %v", err)
			}
			if result.Successful != tt.wantFiles {
				t.Errorf("Successful = %d, want %d", result.Successful, tt.wantFiles)
			}
			if result.Failed != 0 {
				t.Errorf("Failed = %d, want 0", result.Failed)
			}
			if len(updates) == 0 {
				t.Error("expected progress updates")
			}

			manifestPath := filepath.Join(dir, ManifestName)
			if result.ManifestLocation != manifestPath {
				t.Errorf("ManifestLocation = %s, want %s", result.ManifestLocation, manifestPath)
			}

			var manifest formatter.Manifest
			if err := json.Unmarshal([]byte(th.MustReadFile(t, manifestPath)), &manifest); err != nil {
				t.Fatalf("failed to parse manifest: %v", err)
			}
			if manifest.Format != tt.format {
				t.Errorf("manifest format = %s, want %s", manifest.Format, tt.format)
			}
			if len(manifest.Files) != tt.wantFiles {
				t.Errorf("manifest files = %d, want %d", len(manifest.Files), tt.wantFiles)
			}

			if tt.validate != nil {
				tt.validate(t, dir, result)
			}
		})
	}
}

func TestBulkExport_PartialFailures(t *testing.T) {
	s, playlistIDs := seedExportStore(t)
	sink := th.NewMemorySink()

	exporter := NewExporter(s, s, shared.NewLogger(io.Discard))
	result, err := exporter.BulkExport(context.Background(), nil, sink, BulkExportOpts{
		PlaylistIDs: append(playlistIDs, "ghost"),
		SkipSongs:   true,
		RateLimit:   100,
	})
	if err != nil {
		t.Fatalf("BulkExport() error = %v", err)
	}

	if result.Successful != 2 {
		t.Errorf("Successful = %d, want 2", result.Successful)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}

	var failed *ExportFileResult
	for i := range result.Results {
		if result.Results[i].Error != nil {
			failed = &result.Results[i]
		}
	}
	if failed == nil || failed.Name != "ghost" {
		t.Fatalf("expected ghost playlist to fail, got %+v", failed)
	}
	if !errors.Is(failed.Error, shared.ErrNotFound) {
		t.Errorf("failure = %v, want ErrNotFound", failed.Error)
	}
	if len(result.Manifest.Failures) != 1 {
		t.Errorf("manifest failures = %v", result.Manifest.Failures)
	}

	names := sink.Names()
	if len(names) != 3 {
		t.Errorf("sink holds %v, want two playlists and the manifest", names)
	}
	if result.ManifestLocation != "mem://"+ManifestName {
		t.Errorf("ManifestLocation = %s", result.ManifestLocation)
	}
}

func TestBulkExport_SinkFailure(t *testing.T) {
	s, _ := seedExportStore(t)
	sink := th.NewMemorySink()
	sink.Err = shared.ErrExport

	exporter := NewExporter(s, s, shared.NewLogger(io.Discard))
	result, err := exporter.BulkExport(context.Background(), nil, sink, BulkExportOpts{RateLimit: 100})
	if !errors.Is(err, shared.ErrExport) {
		t.Fatalf("BulkExport() error = %v, want ErrExport", err)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
}

func TestBulkExport_Validation(t *testing.T) {
	exporter := NewExporter(nil, nil, shared.NewLogger(io.Discard))

	t.Run("no sink", func(t *testing.T) {
		if _, err := exporter.BulkExport(context.Background(), nil, nil, BulkExportOpts{}); !errors.Is(err, shared.ErrExport) {
			t.Errorf("error = %v, want ErrExport", err)
		}
	})

	t.Run("playlists without store", func(t *testing.T) {
		_, err := exporter.BulkExport(context.Background(), nil, th.NewMemorySink(), BulkExportOpts{PlaylistIDs: []string{"p1"}})
		if !errors.Is(err, shared.ErrExport) {
			t.Errorf("error = %v, want ErrExport", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		s, _ := seedExportStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewExporter(s, s, shared.NewLogger(io.Discard)).BulkExport(ctx, nil, th.NewMemorySink(), BulkExportOpts{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestDirSink(t *testing.T) {
	dir := t.TempDir()
	sink := DirSink{Dir: filepath.Join(dir, "nested")}

	location, err := sink.Put(context.Background(), "a/b.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if location != filepath.Join(dir, "nested", "a", "b.txt") {
		t.Errorf("location = %s", location)
	}
	th.AssertDirExists(t, filepath.Join(dir, "nested", "a"))

	data, err := os.ReadFile(location)
	if err != nil || string(data) != "hello" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
}
