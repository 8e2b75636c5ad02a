package catalog

import (
	"fmt"
	"strings"

	"github.com/desertthunder/songbook/internal/models"
)

// Op is an index operation.
type Op int

const (
	// OpUnion adds values to a field's index without reading it.
	OpUnion Op = iota
	// OpPrune removes one value from a field's index unless a song still holds it.
	OpPrune
)

func (o Op) String() string {
	switch o {
	case OpUnion:
		return "union"
	case OpPrune:
		return "prune"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Mutation is one index command. A prune always carries exactly one value.
type Mutation struct {
	Field  models.FieldSpec
	Op     Op
	Values []string
}

func (m Mutation) String() string {
	return fmt.Sprintf("%s %s %q", m.Op, m.Field.Name, m.Values)
}

// Normalize returns the distinct, trimmed, non-empty values of raw in first-seen order.
func Normalize(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Diff returns after − before and before − after over normalized values.
func Diff(before, after []string) (added, removed []string) {
	b, a := Normalize(before), Normalize(after)
	bs, as := toSet(b), toSet(a)
	for _, v := range a {
		if _, ok := bs[v]; !ok {
			added = append(added, v)
		}
	}
	for _, v := range b {
		if _, ok := as[v]; !ok {
			removed = append(removed, v)
		}
	}
	return added, removed
}

func toSet(values []string) map[string]struct{} {
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Plan returns the mutations that bring the index in line with a write that turned
// before into after. Either snapshot may be nil; both nil yields no mutations.
func Plan(before, after *models.Song) []Mutation {
	if before == nil && after == nil {
		return nil
	}

	var muts []Mutation
	for _, f := range models.CategoryFields() {
		added, removed := Diff(before.Values(f.Name), after.Values(f.Name))
		if len(added) > 0 {
			muts = append(muts, Mutation{Field: f, Op: OpUnion, Values: added})
		}
		for _, v := range removed {
			muts = append(muts, Mutation{Field: f, Op: OpPrune, Values: []string{v}})
		}
	}
	return muts
}
