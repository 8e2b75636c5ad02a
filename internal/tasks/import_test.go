package tasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
	th "github.com/desertthunder/songbook/internal/testing"
)

func TestRowSong(t *testing.T) {
	tests := []struct {
		name    string
		row     Row
		want    *models.Song
		wantErr error
	}{
		{
			name: "spreadsheet columns",
			row: Row{
				"Song":    {" Hava Nagila "},
				"Beat":    {"Hora, Freilach"},
				"Key":     {"Dm"},
				"Season":  {"Purim, Chanukah"},
				"Event":   {"Dancing"},
				"hasidut": {""},
			},
			want: &models.Song{
				Title:  "Hava Nagila",
				Beat:   []string{"Hora", "Freilach"},
				Key:    "Dm",
				Season: []string{"Purim", "Chanukah"},
				Event:  []string{"Dancing"},
			},
		},
		{
			name: "rhythm changes keeps its comma",
			row:  Row{"title": {"Od Yishama"}, "Beat": {"Rhythm Changes, Swing"}},
			want: &models.Song{Title: "Od Yishama", Beat: []string{"Rhythm Changes, Swing"}},
		},
		{
			name: "json arrays",
			row:  Row{"title": {"Erev"}, "Beat": {"Ballad", "Rhythm Changes, Slow"}, "Genre": {"Folk, Pop", "Israeli"}},
			want: &models.Song{Title: "Erev", Beat: []string{"Ballad", "Rhythm Changes, Slow"}, Genre: []string{"Folk", "Pop", "Israeli"}},
		},
		{
			name: "case insensitive headers",
			row:  Row{"TITLE": {"Shalom"}, "singer": {"Bob"}, "id": {"s9"}},
			want: &models.Song{ID: "s9", Title: "Shalom", Singer: "Bob"},
		},
		{
			name:    "missing title",
			row:     Row{"Singer": {"Bob"}},
			wantErr: shared.ErrInvalidSong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.row.Song()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Song() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Song() error = %v", err)
			}

			if got.ID != tt.want.ID || got.Title != tt.want.Title || got.Key != tt.want.Key || got.Singer != tt.want.Singer {
				t.Errorf("Song() = %+v, want %+v", got, tt.want)
			}
			for _, f := range []models.Field{models.FieldBeat, models.FieldSeason, models.FieldEvent, models.FieldGenre} {
				if g, w := got.Values(f), tt.want.Values(f); len(g)+len(w) > 0 && !slices.Equal(g, w) {
					t.Errorf("%s = %q, want %q", f, g, w)
				}
			}
		})
	}
}

func TestDecodeCSV(t *testing.T) {
	input := "\ufeffSong,Beat,Season,Singer\n" +
		"Hava Nagila,\"Hora, Freilach\",Purim,Alice\n" +
		",,,\n" +
		"Od Yishama,\"Rhythm Changes, Swing\",,\n"

	rows, err := DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSV() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (blank rows skipped)", len(rows))
	}

	song, err := rows[0].Song()
	if err != nil {
		t.Fatalf("Song() error = %v", err)
	}
	if song.Title != "Hava Nagila" {
		t.Errorf("title = %q, BOM should be stripped from the header", song.Title)
	}
	if !slices.Equal(song.Beat, []string{"Hora", "Freilach"}) {
		t.Errorf("Beat = %q", song.Beat)
	}

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeCSV(strings.NewReader("Song\n\"unterminated\n"))
		if !errors.Is(err, shared.ErrImport) {
			t.Errorf("error = %v, want ErrImport", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		rows, err := DecodeCSV(strings.NewReader(""))
		if err != nil || len(rows) != 0 {
			t.Errorf("DecodeCSV(\"\") = %v, %v", rows, err)
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	input := `[
		{"title": "Erev", "Beat": ["Ballad"], "Key": "Am", "Season": null},
		{"Song": "Numbers", "Key": 7, "Genre": ["Pop", 2]}
	]`

	rows, err := DecodeJSON(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if _, ok := rows[0]["Season"]; ok {
		t.Error("null values should be dropped")
	}
	if got := rows[1]["Key"]; !slices.Equal(got, []string{"7"}) {
		t.Errorf("Key = %q", got)
	}
	if got := rows[1]["Genre"]; !slices.Equal(got, []string{"Pop", "2"}) {
		t.Errorf("Genre = %q", got)
	}

	if _, err := DecodeJSON(strings.NewReader(`{"title": "x"}`)); !errors.Is(err, shared.ErrImport) {
		t.Errorf("object input error = %v, want ErrImport", err)
	}
}

// id3v23 builds a minimal ID3v2.3 tag holding text frames.
func id3v23(frames map[string]string) []byte {
	var body bytes.Buffer
	for _, id := range []string{"TIT2", "TPE1", "TCOM", "TCON"} {
		text, ok := frames[id]
		if !ok {
			continue
		}
		size := len(text) + 1
		body.WriteString(id)
		body.Write([]byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)})
		body.Write([]byte{0, 0, 0})
		body.WriteString(text)
	}

	n := body.Len()
	header := []byte{'I', 'D', '3', 3, 0, 0,
		byte(n >> 21 & 0x7f), byte(n >> 14 & 0x7f), byte(n >> 7 & 0x7f), byte(n & 0x7f)}
	return append(header, body.Bytes()...)
}

func TestDecodeAudio(t *testing.T) {
	data := id3v23(map[string]string{
		"TIT2": "Hava Nagila",
		"TPE1": "Alice",
		"TCOM": "Traditional",
		"TCON": "Folk",
	})

	row, err := DecodeAudio(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeAudio() error = %v", err)
	}
	song, err := row.Song()
	if err != nil {
		t.Fatalf("Song() error = %v", err)
	}
	if song.Title != "Hava Nagila" || song.Singer != "Alice" || song.Composer != "Traditional" {
		t.Errorf("song = %+v", song)
	}
	if !slices.Equal(song.Genre, []string{"Folk"}) {
		t.Errorf("Genre = %q", song.Genre)
	}

	if _, err := DecodeAudio(bytes.NewReader([]byte("not audio"))); !errors.Is(err, shared.ErrImport) {
		t.Errorf("garbage error = %v, want ErrImport", err)
	}
}

type countingRecorder struct {
	ok, failed int
}

func (c *countingRecorder) RowImported(err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func TestImporter(t *testing.T) {
	ctx := context.Background()

	t.Run("creates, updates and skips failures", func(t *testing.T) {
		s := th.NewTestStore(t)
		th.SeedSongs(t, s, th.SampleSongs()[:1])

		rec := &countingRecorder{}
		importer := NewImporter(s, shared.NewLogger(io.Discard), rec)

		rows := []Row{
			{"id": {"s1"}, "title": {"Hava Nagila (live)"}, "Beat": {"Hora"}},
			{"Song": {"Yerushalayim Shel Zahav"}, "Season": {"Yom Yerushalayim"}},
			{"Singer": {"Nobody"}},
		}

		progressCh := make(chan ProgressUpdate, 10)
		collect := drain(progressCh)
		result, err := importer.Import(ctx, progressCh, rows, ImportOpts{})
		updates := collect()

		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if result.Total != 3 || result.Created != 1 || result.Updated != 1 {
			t.Errorf("result = %+v", result)
		}
		if len(result.Failed) != 1 || result.Failed[0].Row != 3 || !errors.Is(result.Failed[0], shared.ErrInvalidSong) {
			t.Errorf("Failed = %v", result.Failed)
		}
		if rec.ok != 2 || rec.failed != 1 {
			t.Errorf("recorder = %+v", rec)
		}
		if len(updates) != 3 || updates[0].Phase != ImportRows {
			t.Errorf("updates = %+v", updates)
		}

		got, err := s.GetSong(ctx, "s1")
		if err != nil {
			t.Fatalf("GetSong() error = %v", err)
		}
		if got.Title != "Hava Nagila (live)" {
			t.Errorf("title = %q, want updated title", got.Title)
		}

		songs, err := s.ListSongs(ctx, store.SongFilter{})
		if err != nil {
			t.Fatalf("ListSongs() error = %v", err)
		}
		if len(songs) != 2 {
			t.Errorf("store holds %d songs, want 2", len(songs))
		}
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		s := th.NewTestStore(t)
		importer := NewImporter(s, shared.NewLogger(io.Discard), nil)

		result, err := importer.Import(ctx, nil, []Row{{"title": {"A"}}, {"title": {"B"}}}, ImportOpts{DryRun: true, RateLimit: 1000})
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if result.Created != 2 {
			t.Errorf("Created = %d, want 2", result.Created)
		}
		songs, _ := s.ListSongs(ctx, store.SongFilter{})
		if len(songs) != 0 {
			t.Errorf("dry run stored %d songs", len(songs))
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		s := th.NewTestStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewImporter(s, shared.NewLogger(io.Discard), nil).Import(cctx, nil, []Row{{"title": {"A"}}}, ImportOpts{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("files", func(t *testing.T) {
		s := th.NewTestStore(t)
		dir := t.TempDir()

		csvPath := filepath.Join(dir, "songs.csv")
		jsonPath := filepath.Join(dir, "songs.json")
		mp3Path := filepath.Join(dir, "track.mp3")
		must(t, os.WriteFile(csvPath, []byte("Song,Beat\nA,Hora\n"), 0644))
		must(t, os.WriteFile(jsonPath, []byte(`[{"title":"B"}]`), 0644))
		must(t, os.WriteFile(mp3Path, id3v23(map[string]string{"TIT2": "C"}), 0644))

		importer := NewImporter(s, shared.NewLogger(io.Discard), nil)
		result, err := importer.ImportFiles(ctx, nil, []string{csvPath, jsonPath, mp3Path}, ImportOpts{})
		if err != nil {
			t.Fatalf("ImportFiles() error = %v", err)
		}
		if result.Created != 3 {
			t.Errorf("Created = %d, want 3 (%v)", result.Created, result.Failed)
		}

		_, err = importer.ImportFiles(ctx, nil, []string{filepath.Join(dir, "notes.docx")}, ImportOpts{})
		if !errors.Is(err, shared.ErrImport) {
			t.Errorf("unsupported file error = %v, want ErrImport", err)
		}
	})
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
