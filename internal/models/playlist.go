package models

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultPlaylistName replaces blank playlist names.
	DefaultPlaylistName = "Untitled playlist"
	// MaxPlaylistNameLength is in runes.
	MaxPlaylistNameLength = 60
)

// Playlist is a user-owned ordered set of songs.
type Playlist struct {
	ID        string    `json:"id"`
	OwnerUID  string    `json:"ownerUid"`
	Name      string    `json:"name"`
	SongIDs   []string  `json:"songIds"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// SanitizePlaylistName trims name, falls back to [DefaultPlaylistName] and caps the length.
func SanitizePlaylistName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultPlaylistName
	}
	if utf8.RuneCountInString(name) > MaxPlaylistNameLength {
		name = string([]rune(name)[:MaxPlaylistNameLength])
	}
	return name
}

// HasSong reports whether the playlist contains songID.
func (p *Playlist) HasSong(songID string) bool {
	return slices.Contains(p.SongIDs, songID)
}

// AddSong appends songID unless present. It reports whether the list changed.
func (p *Playlist) AddSong(songID string) bool {
	if p.HasSong(songID) {
		return false
	}
	p.SongIDs = append(p.SongIDs, songID)
	return true
}

// RemoveSong drops songID. It reports whether the list changed.
func (p *Playlist) RemoveSong(songID string) bool {
	i := slices.Index(p.SongIDs, songID)
	if i < 0 {
		return false
	}
	p.SongIDs = slices.Delete(p.SongIDs, i, i+1)
	return true
}
