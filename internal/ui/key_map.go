package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up         key.Binding
	down       key.Binding
	enter      key.Binding
	back       key.Binding
	beatSort   key.Binding
	keySort    key.Binding
	musical    key.Binding
	beatFilter key.Binding
	export     key.Binding
	yes        key.Binding
	no         key.Binding
	restart    key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		beatSort:   key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "sort by beat")),
		keySort:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "sort by key")),
		musical:    key.NewBinding(key.WithKeys("M"), key.WithHelp("M", "chromatic keys")),
		beatFilter: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "next beat")),
		export:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		yes:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:         key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no")),
		restart:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "back to songs")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.beatSort, k.keySort, k.musical, k.beatFilter},
		{k.export, k.back, k.quit},
	}
}
