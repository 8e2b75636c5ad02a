// package formatter renders songs and playlists to export formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/songbook/internal/beat"
	"github.com/desertthunder/songbook/internal/models"
)

// Supported export formats
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the supported export formats.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// CSVColumns is the header row of song CSV files. The import engine reads the same layout.
var CSVColumns = []string{"id", "title", "Key", "Singer", "Composer", "hasidut", "Beat", "Theme", "Season", "Event", "Genre", "Lyrics"}

// Extension returns the file extension for format.
func Extension(format string) string {
	switch format {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

// Render dispatches to the exporter for format. Unknown formats render JSON.
func Render(format, title string, songs []*models.Song) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(songs)
	case FormatMarkdown:
		return ExportToMarkdown(title, songs)
	case FormatText:
		return ExportToText(title, songs)
	default:
		return ExportToJSON(songs)
	}
}

// ExportToCSV converts songs to CSV with [CSVColumns]. List fields are joined with ", ".
func ExportToCSV(songs []*models.Song) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(CSVColumns); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range songs {
		record := []string{
			s.ID,
			s.Title,
			s.Key,
			s.Singer,
			s.Composer,
			s.Hasidut,
			strings.Join(s.Beat, ", "),
			strings.Join(s.Theme, ", "),
			strings.Join(s.Season, ", "),
			strings.Join(s.Event, ", "),
			strings.Join(s.Genre, ", "),
			s.Lyrics,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a songbook document with one section per song.
func ExportToMarkdown(title string, songs []*models.Song) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Songs**: %d\n\n", len(songs)))

	for _, s := range songs {
		buf.WriteString(fmt.Sprintf("## %s\n\n", s.Title))

		meta := []struct{ label, value string }{
			{"Singer", s.Singer},
			{"Composer", s.Composer},
			{"Key", s.Key},
			{"Beat", beat.DisplayText(s.Beat)},
			{"Genre", strings.Join(s.Genre, ", ")},
			{"Theme", strings.Join(s.Theme, ", ")},
			{"Event", strings.Join(s.Event, ", ")},
			{"Season", strings.Join(s.Season, ", ")},
			{"Hasidut", s.Hasidut},
		}
		for _, m := range meta {
			if m.value != "" {
				buf.WriteString(fmt.Sprintf("- **%s**: %s\n", m.label, m.value))
			}
		}

		if lyrics := strings.TrimSpace(s.Lyrics); lyrics != "" {
			buf.WriteString("\n")
			for line := range strings.SplitSeq(lyrics, "\n") {
				buf.WriteString(fmt.Sprintf("> %s\n", strings.TrimRight(line, "\r")))
			}
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText renders a numbered song list.
func ExportToText(title string, songs []*models.Song) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", title))
	buf.WriteString(fmt.Sprintf("Songs: %d\n\n", len(songs)))

	for i, s := range songs {
		line := fmt.Sprintf("%d. %s", i+1, s.Title)
		if s.Singer != "" {
			line += " - " + s.Singer
		}
		if label := beat.Label(s.Beat); label != beat.OtherLabel {
			line += fmt.Sprintf(" [%s]", label)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders songs as an indented JSON array.
func ExportToJSON(songs []*models.Song) ([]byte, error) {
	if songs == nil {
		songs = []*models.Song{}
	}
	data, err := json.MarshalIndent(songs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal songs: %w", err)
	}
	return data, nil
}

// Manifest summarizes an export run.
type Manifest struct {
	ExportedAt time.Time `json:"exportedAt"`
	Format     string    `json:"format"`
	Songs      int       `json:"songs"`
	Playlists  int       `json:"playlists"`
	Files      []string  `json:"files"`
	Failures   []string  `json:"failures,omitempty"`
}

// ToManifestJSON renders m as indented JSON.
func ToManifestJSON(m Manifest) ([]byte, error) {
	if m.Files == nil {
		m.Files = []string{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}

// PlaylistFilename returns a file name for a playlist export.
func PlaylistFilename(p *models.Playlist, format string) string {
	return fmt.Sprintf("playlist_%s%s", p.ID, Extension(format))
}
