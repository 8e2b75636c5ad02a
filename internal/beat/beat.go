// Package beat normalizes song Beat values.
//
// A Beat is stored either as a single string or as a list of tags. Tags from the
// "Rhythm Changes" family contain a comma that is part of the tag, so a
// stored string starting with one of [RhythmPrefixes] is never split.
package beat

import "strings"

// RhythmPrefixes are the lowercase markers of compound tags. The second entry is a
// common misspelling found in imported data.
var RhythmPrefixes = []string{"rhythm changes", "rythem changes"}

const (
	// RhythmChangesLabel is the bucket every compound tag is classified under.
	RhythmChangesLabel = "Rhythm Changes"
	// OtherLabel is the bucket for songs without a beat.
	OtherLabel = "Other"

	// sortSentinel is prefixed to the compound bucket's sort key so it orders after
	// Latin tags. listing ranks the bucket explicitly for other scripts.
	sortSentinel = "ZZZZ"
)

// Raw is a Beat value as read from storage.
type Raw interface {
	string | []string
}

// Split returns the individual tags of a Beat value, trimmed, without blanks, in
// input order.
func Split[T Raw](value T) []string {
	switch v := any(value).(type) {
	case []string:
		return splitList(v)
	case string:
		return splitString(v)
	}
	return nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitString(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	if hasRhythmPrefix(value) {
		return []string{value}
	}
	return splitList(strings.Split(value, ","))
}

func hasRhythmPrefix(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range RhythmPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// IsRhythmChanges reports whether the first tag of value is a compound tag. A first
// tag that still contains a comma is treated as compound too.
func IsRhythmChanges[T Raw](value T) bool {
	tags := Split(value)
	if len(tags) == 0 {
		return false
	}
	first := tags[0]
	return hasRhythmPrefix(first) || strings.Contains(first, ",")
}

// Label returns the classification bucket for value: [OtherLabel] when empty,
// [RhythmChangesLabel] for compound tags, otherwise the first tag.
func Label[T Raw](value T) string {
	tags := Split(value)
	if len(tags) == 0 {
		return OtherLabel
	}
	if IsRhythmChanges(tags[0]) {
		return RhythmChangesLabel
	}
	return tags[0]
}

// SortValue returns the beat sort key of value. Compound tags sort last.
func SortValue[T Raw](value T) string {
	if IsRhythmChanges(value) {
		return sortSentinel + RhythmChangesLabel
	}
	tags := Split(value)
	if len(tags) == 0 {
		return ""
	}
	return tags[0]
}

// DisplayText joins the tags of value for display.
func DisplayText[T Raw](value T) string {
	return strings.Join(Split(value), ", ")
}
