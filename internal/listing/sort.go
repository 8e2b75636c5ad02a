package listing

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/desertthunder/songbook/internal/beat"
	"github.com/desertthunder/songbook/internal/models"
)

// DefaultTitleLocale matches the repertoire's main script.
var DefaultTitleLocale = language.Hebrew

// Options configures a comparator. The zero value sorts by title only.
type Options struct {
	ByBeat bool
	ByKey  bool
	// MusicalKeys orders keys chromatically instead of alphabetically.
	MusicalKeys bool
	// TitleLocale defaults to [DefaultTitleLocale].
	TitleLocale language.Tag
}

// Comparator orders two songs, returning a negative number, zero or a positive number.
type Comparator func(a, b *models.Song) int

// NewComparator returns a Comparator for opts.
//
// The returned function owns collators with internal buffers and is not safe for
// concurrent use.
func NewComparator(opts Options) Comparator {
	tag := opts.TitleLocale
	if tag == language.Und {
		tag = DefaultTitleLocale
	}
	en := collate.New(language.English)
	title := collate.New(tag)

	return func(a, b *models.Song) int {
		if opts.ByBeat {
			if c := compareCompound(beat.IsRhythmChanges(a.Beat), beat.IsRhythmChanges(b.Beat)); c != 0 {
				return c
			}
			if c := en.CompareString(beat.SortValue(a.Beat), beat.SortValue(b.Beat)); c != 0 {
				return c
			}
		}
		if opts.ByKey {
			var c int
			if opts.MusicalKeys {
				c = compareMusicalKeys(en, a.Key, b.Key)
			} else {
				c = en.CompareString(a.Key, b.Key)
			}
			if c != 0 {
				return c
			}
		}
		return title.CompareString(a.Title, b.Title)
	}
}

// Sort orders songs in place. Songs comparing equal keep their relative order.
func Sort(songs []*models.Song, opts Options) {
	slices.SortStableFunc(songs, NewComparator(opts))
}

// ParseLocale parses a BCP 47 tag such as "he" or "en-US", falling back to
// [DefaultTitleLocale].
func ParseLocale(s string) language.Tag {
	if strings.TrimSpace(s) == "" {
		return DefaultTitleLocale
	}
	tag, err := language.Parse(s)
	if err != nil {
		return DefaultTitleLocale
	}
	return tag
}

// compareCompound puts the compound beat bucket after every other beat,
// whatever script the other tags are written in.
func compareCompound(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

var musicalOrder = []string{"C", "C#", "Db", "D", "D#", "Eb", "E", "F", "F#", "Gb", "G", "G#", "Ab", "A", "A#", "Bb", "B"}

// KeyIndex returns the chromatic position of a key such as "F#m", or -1.
func KeyIndex(key string) int {
	root := strings.TrimSuffix(strings.TrimSpace(key), "m")
	return slices.Index(musicalOrder, root)
}

func compareMusicalKeys(c *collate.Collator, a, b string) int {
	ia, ib := KeyIndex(a), KeyIndex(b)
	switch {
	case ia >= 0 && ib >= 0:
		return ia - ib
	case ia >= 0:
		return -1
	case ib >= 0:
		return 1
	default:
		return c.CompareString(a, b)
	}
}
