package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/desertthunder/songbook/internal/models"
)

func fixtures() []*models.Song {
	return []*models.Song{
		{ID: "1", Title: "Hava Nagila", Beat: []string{"Hora"}, Genre: []string{"Folk"}, Singer: "Alice"},
		{ID: "2", Title: "Swing Time", Beat: []string{"Rythem changes, 4/4"}, Key: "Bb"},
		{ID: "3", Title: "Quiet", Genre: []string{"Folk", "Niggun"}, Event: []string{"Chuppah"}},
		{ID: "4", Title: "Waltz of Joy", Beat: []string{"Waltz", "Hora"}, Composer: "Carmi"},
	}
}

func TestBeatButtons(t *testing.T) {
	assert.Equal(t, []string{AllBeats, "Hora", "Other", "Rhythm Changes", "Waltz"}, BeatButtons(fixtures()))
	assert.Equal(t, []string{AllBeats}, BeatButtons(nil))
}

func TestFilterByBeat(t *testing.T) {
	songs := fixtures()
	assert.Len(t, FilterByBeat(songs, AllBeats), 4)
	assert.Len(t, FilterByBeat(songs, ""), 4)

	got := FilterByBeat(songs, "Rhythm Changes")
	assert.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	got = FilterByBeat(songs, "Other")
	assert.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)
}

func TestFilterByField(t *testing.T) {
	songs := fixtures()
	genre, _ := models.LookupField("Genre")
	singer, _ := models.LookupField("Singer")

	assert.Len(t, FilterByField(songs, genre, "Folk"), 2)
	assert.Len(t, FilterByField(songs, genre, " Niggun "), 1)
	assert.Len(t, FilterByField(songs, singer, "Alice"), 1)
	assert.Empty(t, FilterByField(songs, singer, "Bob"))
}

func TestMatch(t *testing.T) {
	songs := fixtures()
	tc := []struct {
		name  string
		query string
		want  int
	}{
		{name: "short query matches all", query: "h", want: 4},
		{name: "title", query: "nagila", want: 1},
		{name: "beat", query: "hora", want: 2},
		{name: "composer", query: "CARMI", want: 1},
		{name: "event", query: "chuppah", want: 1},
		{name: "key", query: "bb", want: 1},
		{name: "none", query: "xyz", want: 0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Search(songs, tt.query), tt.want)
		})
	}
}

func TestWeddingLabel(t *testing.T) {
	assert.Equal(t, "Chuppah", WeddingLabel(" chuppah "))
	assert.Equal(t, "Dancing", WeddingLabel("First Dance"))
	assert.Equal(t, "", WeddingLabel("Shabbat"))
}

func TestSortStrings(t *testing.T) {
	values := []string{"waltz", "Hora", "freilach"}
	SortStrings(values)
	assert.Equal(t, []string{"freilach", "Hora", "waltz"}, values)
}
