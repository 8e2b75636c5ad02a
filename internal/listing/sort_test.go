package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/desertthunder/songbook/internal/models"
)

func titles(songs []*models.Song) []string {
	out := make([]string, len(songs))
	for i, s := range songs {
		out[i] = s.Title
	}
	return out
}

func TestComparator(t *testing.T) {
	t.Run("compound beats sort last", func(t *testing.T) {
		songs := []*models.Song{
			{Title: "one", Beat: []string{"A"}},
			{Title: "two", Beat: []string{"Rhythm Changes, Blues"}},
			{Title: "three", Beat: []string{"B"}},
		}
		Sort(songs, Options{ByBeat: true})
		assert.Equal(t, []string{"one", "three", "two"}, titles(songs))
	})

	t.Run("compound beats sort after non-latin and late latin tags", func(t *testing.T) {
		songs := []*models.Song{
			{Title: "compound", Beat: []string{"Rhythm Changes, Blues"}},
			{Title: "hebrew", Beat: []string{"הורה"}},
			{Title: "late", Beat: []string{"zzzzz"}},
		}
		Sort(songs, Options{ByBeat: true})
		assert.Equal(t, "compound", songs[2].Title)

		cmp := NewComparator(Options{ByBeat: true})
		assert.Positive(t, cmp(songs[2], songs[0]))
		assert.Negative(t, cmp(songs[0], songs[2]))
	})

	t.Run("beat outranks key and title", func(t *testing.T) {
		a := &models.Song{Title: "a", Beat: []string{"Waltz"}, Key: "A"}
		b := &models.Song{Title: "b", Beat: []string{"Hora"}, Key: "G"}
		cmp := NewComparator(Options{ByBeat: true, ByKey: true})
		assert.Positive(t, cmp(a, b))
		assert.Negative(t, cmp(b, a))
	})

	t.Run("equal beat orders by key", func(t *testing.T) {
		a := &models.Song{Title: "a", Beat: []string{"Hora"}, Key: "G"}
		b := &models.Song{Title: "b", Beat: []string{"Hora"}, Key: "D"}
		cmp := NewComparator(Options{ByBeat: true, ByKey: true})
		assert.Positive(t, cmp(a, b))
	})

	t.Run("equal beat and key fall back to title", func(t *testing.T) {
		a := &models.Song{Title: "Bashana", Beat: []string{"Hora"}, Key: "Am"}
		b := &models.Song{Title: "Adon Olam", Beat: []string{"Hora"}, Key: "Am"}
		cmp := NewComparator(Options{ByBeat: true, ByKey: true, TitleLocale: language.English})
		assert.Positive(t, cmp(a, b))
		assert.Zero(t, cmp(a, a))
	})

	t.Run("disabled levels are ignored", func(t *testing.T) {
		a := &models.Song{Title: "a", Beat: []string{"Waltz"}, Key: "G"}
		b := &models.Song{Title: "b", Beat: []string{"Hora"}, Key: "A"}
		cmp := NewComparator(Options{})
		assert.Negative(t, cmp(a, b))
	})

	t.Run("missing values sort first", func(t *testing.T) {
		songs := []*models.Song{
			{Title: "keyed", Key: "C"},
			{Title: "unkeyed"},
		}
		Sort(songs, Options{ByKey: true})
		assert.Equal(t, []string{"unkeyed", "keyed"}, titles(songs))
	})

	t.Run("hebrew titles", func(t *testing.T) {
		songs := []*models.Song{
			{Title: "גשם"},
			{Title: "אבא"},
			{Title: "בית"},
		}
		Sort(songs, Options{})
		assert.Equal(t, []string{"אבא", "בית", "גשם"}, titles(songs))
	})

	t.Run("musical keys", func(t *testing.T) {
		songs := []*models.Song{
			{Title: "1", Key: "Am"},
			{Title: "2", Key: "C"},
			{Title: "3", Key: "F#"},
			{Title: "4", Key: "??"},
		}
		Sort(songs, Options{ByKey: true, MusicalKeys: true})
		assert.Equal(t, []string{"2", "3", "1", "4"}, titles(songs))
	})

	t.Run("strict weak ordering", func(t *testing.T) {
		songs := []*models.Song{
			{Title: "c", Beat: []string{"Hora"}, Key: "D"},
			{Title: "a", Beat: []string{"Rhythm Changes, Swing"}},
			{Title: "b", Beat: []string{"Hora"}, Key: "D"},
			{Title: "d"},
		}
		cmp := NewComparator(Options{ByBeat: true, ByKey: true, TitleLocale: language.English})
		for _, x := range songs {
			for _, y := range songs {
				assert.Equal(t, sign(cmp(x, y)), -sign(cmp(y, x)), "%s vs %s", x.Title, y.Title)
			}
		}
	})
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func TestKeyIndex(t *testing.T) {
	assert.Equal(t, 0, KeyIndex("C"))
	assert.Equal(t, 13, KeyIndex("Am"))
	assert.Equal(t, 8, KeyIndex(" F# "))
	assert.Equal(t, 2, KeyIndex("Db"))
	assert.Equal(t, 5, KeyIndex("Ebm"))
	assert.Equal(t, -1, KeyIndex("H"))
	assert.Equal(t, -1, KeyIndex(""))
}

func TestParseLocale(t *testing.T) {
	assert.Equal(t, "he", ParseLocale("").String())
	assert.Equal(t, "he", ParseLocale("not a locale!").String())
	assert.Equal(t, "en", ParseLocale("en").String())
}
