// Package models defines the domain entities of the songbook service.
//
//   - [Song] : a repertoire entry with scalar and multi-value category fields
//   - [FieldSpec] : the closed table of category fields and their value kind
//   - [CategoryIndex] : the per-field set of values currently in use (categories_metadata)
//   - [ChangeEvent] : a write notification carrying before/after snapshots of a song
//   - [Playlist] : an ordered, user-owned set of song ids
//   - [User] : an authenticated account with its custom admin claim
//
// JSON field names follow the document layout used by the stores ("title", "Beat",
// "Key", "hasidut", ...), so a Song marshals to the same shape it is stored in.
package models
