package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/songbook/internal/shared"
)

func TestFields(t *testing.T) {
	t.Run("LookupField", func(t *testing.T) {
		spec, ok := LookupField("Genre")
		if !ok || spec.Kind != MultiValue {
			t.Errorf("expected Genre to be multi-value, got %+v %v", spec, ok)
		}

		spec, ok = LookupField("Singer")
		if !ok || spec.Kind != SingleValue {
			t.Errorf("expected Singer to be single-value, got %+v %v", spec, ok)
		}

		if _, ok := LookupField("genre"); ok {
			t.Error("field names are case sensitive")
		}
	})

	t.Run("CategoryFields returns a copy", func(t *testing.T) {
		fields := CategoryFields()
		fields[0].Name = "Mutated"
		if CategoryFields()[0].Name == "Mutated" {
			t.Error("CategoryFields should not expose the table")
		}
	})

	t.Run("Kind", func(t *testing.T) {
		if FieldBeat.Kind() != MultiValue {
			t.Error("Beat should be multi-value")
		}
		if Field("Unknown").Kind() != SingleValue {
			t.Error("unknown fields default to single-value")
		}
	})
}

func TestSong(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		s := &Song{Title: "   "}
		if err := s.Validate(); !errors.Is(err, shared.ErrInvalidSong) {
			t.Errorf("expected ErrInvalidSong, got %v", err)
		}

		s.Title = "Od Yishama"
		if err := s.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Values", func(t *testing.T) {
		s := &Song{Singer: "Alice", Genre: []string{"Pop", "Folk"}}

		if got := s.Values(FieldSinger); len(got) != 1 || got[0] != "Alice" {
			t.Errorf("Values(Singer) = %v", got)
		}
		if got := s.Values(FieldComposer); got != nil {
			t.Errorf("empty scalar should be nil, got %v", got)
		}
		if got := s.Values(FieldGenre); len(got) != 2 {
			t.Errorf("Values(Genre) = %v", got)
		}

		var nilSong *Song
		if nilSong.Values(FieldSinger) != nil {
			t.Error("nil song has no values")
		}
	})

	t.Run("SetValues", func(t *testing.T) {
		s := &Song{}
		s.SetValues(FieldSinger, []string{"Bob", "ignored"})
		s.SetValues(FieldEvent, []string{"Wedding"})

		if s.Singer != "Bob" {
			t.Errorf("expected Singer Bob, got %q", s.Singer)
		}
		if len(s.Event) != 1 || s.Event[0] != "Wedding" {
			t.Errorf("expected Event [Wedding], got %v", s.Event)
		}

		s.SetValues(FieldSinger, nil)
		if s.Singer != "" {
			t.Errorf("expected Singer cleared, got %q", s.Singer)
		}
	})

	t.Run("Normalize", func(t *testing.T) {
		s := &Song{
			Title:  "  Title ",
			Key:    " Am ",
			Beat:   []string{"Rhythm Changes, Swing", " "},
			Genre:  []string{"Pop, Folk", ""},
			Season: []string{" Winter "},
		}
		s.Normalize()

		if s.Title != "Title" || s.Key != "Am" {
			t.Errorf("scalars not trimmed: %q %q", s.Title, s.Key)
		}
		if len(s.Beat) != 1 || s.Beat[0] != "Rhythm Changes, Swing" {
			t.Errorf("compound beat should stay whole, got %v", s.Beat)
		}
		if strings.Join(s.Genre, "|") != "Pop|Folk" {
			t.Errorf("expected genre split, got %v", s.Genre)
		}
		if strings.Join(s.Season, "|") != "Winter" {
			t.Errorf("expected season trimmed, got %v", s.Season)
		}
	})

	t.Run("Clone", func(t *testing.T) {
		s := &Song{Title: "A", Genre: []string{"Pop"}}
		c := s.Clone()
		c.Genre[0] = "Rock"
		if s.Genre[0] != "Pop" {
			t.Error("clone shares list storage")
		}
	})

	t.Run("UnmarshalJSON", func(t *testing.T) {
		tc := []struct {
			name  string
			input string
			check func(t *testing.T, s Song)
		}{
			{
				name:  "lists",
				input: `{"id":"1","title":"A","Beat":["Hora"],"Genre":["Pop","Folk"]}`,
				check: func(t *testing.T, s Song) {
					if len(s.Genre) != 2 || s.Beat[0] != "Hora" {
						t.Errorf("unexpected song %+v", s)
					}
				},
			},
			{
				name:  "legacy scalar beat",
				input: `{"title":"A","Beat":"Rythem changes, 4/4"}`,
				check: func(t *testing.T, s Song) {
					if len(s.Beat) != 1 || s.Beat[0] != "Rythem changes, 4/4" {
						t.Errorf("unexpected beat %v", s.Beat)
					}
				},
			},
			{
				name:  "legacy scalar theme",
				input: `{"title":"A","Theme":"Shabbat, Joy","hasidut":"Chabad"}`,
				check: func(t *testing.T, s Song) {
					if strings.Join(s.Theme, "|") != "Shabbat|Joy" || s.Hasidut != "Chabad" {
						t.Errorf("unexpected song %+v", s)
					}
				},
			},
			{
				name:  "null and blank",
				input: `{"title":"A","Beat":null,"Event":"  "}`,
				check: func(t *testing.T, s Song) {
					if s.Beat != nil || s.Event != nil {
						t.Errorf("expected empty lists, got %v %v", s.Beat, s.Event)
					}
				},
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				var s Song
				if err := json.Unmarshal([]byte(tt.input), &s); err != nil {
					t.Fatalf("unmarshal failed: %v", err)
				}
				tt.check(t, s)
			})
		}
	})
}

func TestChangeEventOp(t *testing.T) {
	s := &Song{ID: "1", Title: "A"}
	tc := []struct {
		ev   ChangeEvent
		want string
	}{
		{ChangeEvent{}, "noop"},
		{ChangeEvent{After: s}, "create"},
		{ChangeEvent{Before: s}, "delete"},
		{ChangeEvent{Before: s, After: s}, "update"},
	}
	for _, tt := range tc {
		if got := tt.ev.Op(); got != tt.want {
			t.Errorf("Op() = %s, want %s", got, tt.want)
		}
	}
}

func TestPlaylist(t *testing.T) {
	t.Run("SanitizePlaylistName", func(t *testing.T) {
		if got := SanitizePlaylistName("   "); got != DefaultPlaylistName {
			t.Errorf("expected default name, got %q", got)
		}
		if got := SanitizePlaylistName("  Shabbat  "); got != "Shabbat" {
			t.Errorf("expected trimmed name, got %q", got)
		}
		long := strings.Repeat("ש", 80)
		if got := SanitizePlaylistName(long); len([]rune(got)) != MaxPlaylistNameLength {
			t.Errorf("expected %d runes, got %d", MaxPlaylistNameLength, len([]rune(got)))
		}
	})

	t.Run("Add and Remove", func(t *testing.T) {
		p := &Playlist{}
		if !p.AddSong("a") || p.AddSong("a") {
			t.Error("AddSong should have set semantics")
		}
		p.AddSong("b")
		if !p.RemoveSong("a") || p.RemoveSong("a") {
			t.Error("RemoveSong should report changes once")
		}
		if len(p.SongIDs) != 1 || p.SongIDs[0] != "b" {
			t.Errorf("unexpected songs %v", p.SongIDs)
		}
	})
}
