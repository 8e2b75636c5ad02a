package models

import (
	"fmt"
	"slices"
)

// FieldKind tells how a category field holds its value.
type FieldKind int

const (
	// SingleValue fields hold one string. A blank value counts as absent.
	SingleValue FieldKind = iota
	// MultiValue fields hold a list of strings.
	MultiValue
)

func (k FieldKind) String() string {
	switch k {
	case SingleValue:
		return "single"
	case MultiValue:
		return "multi"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Field is the stored name of a category field.
type Field string

const (
	FieldKey      Field = "Key"
	FieldSinger   Field = "Singer"
	FieldComposer Field = "Composer"
	FieldHasidut  Field = "hasidut"
	FieldBeat     Field = "Beat"
	FieldTheme    Field = "Theme"
	FieldSeason   Field = "Season"
	FieldEvent    Field = "Event"
	FieldGenre    Field = "Genre"
)

// FieldSpec pairs a category field with its value kind.
type FieldSpec struct {
	Name Field
	Kind FieldKind
}

var categoryFields = []FieldSpec{
	{Name: FieldEvent, Kind: MultiValue},
	{Name: FieldSeason, Kind: MultiValue},
	{Name: FieldTheme, Kind: MultiValue},
	{Name: FieldGenre, Kind: MultiValue},
	{Name: FieldBeat, Kind: MultiValue},
	{Name: FieldSinger, Kind: SingleValue},
	{Name: FieldComposer, Kind: SingleValue},
	{Name: FieldKey, Kind: SingleValue},
	{Name: FieldHasidut, Kind: SingleValue},
}

// CategoryFields returns the tracked category fields in a stable order.
func CategoryFields() []FieldSpec {
	return slices.Clone(categoryFields)
}

// LookupField returns the spec for name.
func LookupField(name string) (FieldSpec, bool) {
	for _, f := range categoryFields {
		if string(f.Name) == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Kind returns the value kind of f. Unknown fields are single-valued.
func (f Field) Kind() FieldKind {
	if spec, ok := LookupField(string(f)); ok {
		return spec.Kind
	}
	return SingleValue
}
