package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/songbook/internal/beat"
	"github.com/desertthunder/songbook/internal/models"
)

var _ list.Item = songItem{}

// songItem wraps [models.Song] to implement [list.Item].
type songItem struct {
	song *models.Song
}

func (i songItem) FilterValue() string {
	return strings.Join([]string{i.song.Title, i.song.Singer, i.song.Composer}, " ")
}

func (i songItem) Title() string { return i.song.Title }

func (i songItem) Description() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{i.song.Key, i.song.Singer, beat.Label(i.song.Beat)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " • ")
}

func songItems(songs []*models.Song) []list.Item {
	items := make([]list.Item, len(songs))
	for i, s := range songs {
		items[i] = songItem{song: s}
	}
	return items
}
