// Package ui implements an interactive terminal song browser using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow:
//  1. [SongListView] : Browse the catalog, filter by beat and switch sort orders
//  2. [DetailView] : Show every category field and the lyrics of one song
//  3. [ConfirmView] : Confirm an export of the current listing order
//  4. [ExportView] : Monitor real-time progress updates
//  5. [ResultView] : Display exported files and failures
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Export progress flows through a channel from the [tasks.Exporter], providing non-blocking status reporting.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
