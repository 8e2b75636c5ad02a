package listing

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/desertthunder/songbook/internal/beat"
	"github.com/desertthunder/songbook/internal/models"
)

// AllBeats is the filter button that disables beat filtering.
const AllBeats = "ALL"

// BeatButtons returns the distinct beat labels of songs, sorted, preceded by [AllBeats].
func BeatButtons(songs []*models.Song) []string {
	seen := map[string]bool{}
	var labels []string
	for _, s := range songs {
		l := beat.Label(s.Beat)
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	SortStrings(labels)
	return append([]string{AllBeats}, labels...)
}

// FilterByBeat keeps songs whose beat label is label. An empty label or [AllBeats]
// keeps everything.
func FilterByBeat(songs []*models.Song, label string) []*models.Song {
	if label == "" || label == AllBeats {
		return songs
	}
	var out []*models.Song
	for _, s := range songs {
		if beat.Label(s.Beat) == label {
			out = append(out, s)
		}
	}
	return out
}

// FilterByField keeps songs that hold value in f: equality for single-value fields,
// membership for multi-value fields.
func FilterByField(songs []*models.Song, f models.FieldSpec, value string) []*models.Song {
	value = strings.TrimSpace(value)
	var out []*models.Song
	for _, s := range songs {
		if HasValue(s, f, value) {
			out = append(out, s)
		}
	}
	return out
}

// HasValue reports whether s holds value in f.
func HasValue(s *models.Song, f models.FieldSpec, value string) bool {
	values := s.Values(f.Name)
	if f.Kind == models.SingleValue {
		return len(values) == 1 && strings.TrimSpace(values[0]) == value
	}
	return slices.ContainsFunc(values, func(v string) bool {
		return strings.TrimSpace(v) == value
	})
}

// Match reports whether s matches a free-text query. Queries of one character or
// less match everything.
func Match(s *models.Song, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) <= 1 {
		return true
	}
	fields := []string{s.Title, s.Composer, s.Key, s.Singer}
	fields = append(fields, s.Beat...)
	fields = append(fields, s.Theme...)
	fields = append(fields, s.Genre...)
	fields = append(fields, s.Event...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Search filters songs by [Match].
func Search(songs []*models.Song, query string) []*models.Song {
	var out []*models.Song
	for _, s := range songs {
		if Match(s, query) {
			out = append(out, s)
		}
	}
	return out
}

// SortStrings orders category values the way the admin forms list them.
func SortStrings(values []string) {
	c := collate.New(language.English)
	slices.SortFunc(values, c.CompareString)
}

var weddingLabels = map[string]string{
	"chuppah":        "Chuppah",
	"kabbalat panim": "Kabbalat Panim",
	"reception":      "Reception",
	"dancing":        "Dancing",
	"first dance":    "Dancing",
}

// WeddingLabel maps an Event value to its wedding section, or "" when the value is
// not part of a wedding.
func WeddingLabel(event string) string {
	return weddingLabels[strings.ToLower(strings.TrimSpace(event))]
}
