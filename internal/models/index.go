package models

import "time"

// CategoryIndex is the categories_metadata document of one field.
type CategoryIndex struct {
	Field     Field     `json:"field"`
	Values    []string  `json:"values"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// ChangeEvent is a write notification for one song. Before is nil on creation and
// After is nil on deletion.
type ChangeEvent struct {
	ID        int64     `json:"id"`
	SongID    string    `json:"song_id"`
	Before    *Song     `json:"before,omitempty"`
	After     *Song     `json:"after,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// Op names the kind of write that produced the event.
func (e ChangeEvent) Op() string {
	switch {
	case e.Before == nil && e.After == nil:
		return "noop"
	case e.Before == nil:
		return "create"
	case e.After == nil:
		return "delete"
	default:
		return "update"
	}
}
