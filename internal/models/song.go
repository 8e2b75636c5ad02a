package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/songbook/internal/beat"
	"github.com/desertthunder/songbook/internal/shared"
)

// Song is a repertoire entry.
type Song struct {
	ID        string    `json:"id"`
	Sequence  int       `json:"-"`
	Title     string    `json:"title"`
	Key       string    `json:"Key,omitempty"`
	Singer    string    `json:"Singer,omitempty"`
	Composer  string    `json:"Composer,omitempty"`
	Hasidut   string    `json:"hasidut,omitempty"`
	Beat      []string  `json:"Beat,omitempty"`
	Theme     []string  `json:"Theme,omitempty"`
	Season    []string  `json:"Season,omitempty"`
	Event     []string  `json:"Event,omitempty"`
	Genre     []string  `json:"Genre,omitempty"`
	Lyrics    string    `json:"Lyrics,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Validate checks that the song has a title.
func (s *Song) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidSong)
	}
	return nil
}

// Values returns the raw stored values of a category field. A scalar field yields a
// one-element slice, or nil when empty.
func (s *Song) Values(f Field) []string {
	if s == nil {
		return nil
	}
	if p := s.scalar(f); p != nil {
		if *p == "" {
			return nil
		}
		return []string{*p}
	}
	if p := s.list(f); p != nil {
		return *p
	}
	return nil
}

// SetValues replaces a category field. Scalar fields keep the first value.
func (s *Song) SetValues(f Field, values []string) {
	if p := s.scalar(f); p != nil {
		*p = ""
		if len(values) > 0 {
			*p = values[0]
		}
		return
	}
	if p := s.list(f); p != nil {
		*p = values
	}
}

func (s *Song) scalar(f Field) *string {
	switch f {
	case FieldKey:
		return &s.Key
	case FieldSinger:
		return &s.Singer
	case FieldComposer:
		return &s.Composer
	case FieldHasidut:
		return &s.Hasidut
	}
	return nil
}

func (s *Song) list(f Field) *[]string {
	switch f {
	case FieldBeat:
		return &s.Beat
	case FieldTheme:
		return &s.Theme
	case FieldSeason:
		return &s.Season
	case FieldEvent:
		return &s.Event
	case FieldGenre:
		return &s.Genre
	}
	return nil
}

// Normalize trims the title and scalar fields and splits list fields into clean tags.
func (s *Song) Normalize() {
	s.Title = strings.TrimSpace(s.Title)
	s.Key = strings.TrimSpace(s.Key)
	s.Singer = strings.TrimSpace(s.Singer)
	s.Composer = strings.TrimSpace(s.Composer)
	s.Hasidut = strings.TrimSpace(s.Hasidut)
	s.Beat = beat.Split(s.Beat)
	for _, f := range []Field{FieldTheme, FieldSeason, FieldEvent, FieldGenre} {
		p := s.list(f)
		var out []string
		for _, v := range *p {
			out = append(out, shared.SplitAndClean(v)...)
		}
		*p = out
	}
}

// Clone returns a deep copy of s.
func (s *Song) Clone() *Song {
	if s == nil {
		return nil
	}
	c := *s
	c.Beat = slices.Clone(s.Beat)
	c.Theme = slices.Clone(s.Theme)
	c.Season = slices.Clone(s.Season)
	c.Event = slices.Clone(s.Event)
	c.Genre = slices.Clone(s.Genre)
	return &c
}

// UnmarshalJSON accepts documents where list fields were stored as plain strings.
// Beat strings go through the beat splitter, other strings are comma split.
func (s *Song) UnmarshalJSON(data []byte) error {
	type alias Song
	var raw struct {
		alias
		Beat   flexList `json:"Beat"`
		Theme  flexList `json:"Theme"`
		Season flexList `json:"Season"`
		Event  flexList `json:"Event"`
		Genre  flexList `json:"Genre"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Song(raw.alias)
	s.Beat = raw.Beat.values(beat.Split[string])
	s.Theme = raw.Theme.values(shared.SplitAndClean)
	s.Season = raw.Season.values(shared.SplitAndClean)
	s.Event = raw.Event.values(shared.SplitAndClean)
	s.Genre = raw.Genre.values(shared.SplitAndClean)
	return nil
}

// flexList decodes either a JSON string or a JSON array of strings.
type flexList struct {
	scalar *string
	list   []string
}

func (f *flexList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.scalar = &s
		return nil
	}
	return json.Unmarshal(data, &f.list)
}

func (f flexList) values(split func(string) []string) []string {
	if f.scalar != nil {
		if out := split(*f.scalar); len(out) > 0 {
			return out
		}
		return nil
	}
	return f.list
}
