package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/songbook/internal/beat"
	"github.com/desertthunder/songbook/internal/formatter"
	"github.com/desertthunder/songbook/internal/listing"
	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/store"
	"github.com/desertthunder/songbook/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SongListView ViewState = iota
	DetailView
	ConfirmView
	ExportView
	ResultView
)

// Catalog lists songs.
type Catalog interface {
	ListSongs(ctx context.Context, filter store.SongFilter) ([]*models.Song, error)
}

// Exporter writes the catalog to a sink.
type Exporter interface {
	BulkExport(ctx context.Context, prog chan<- tasks.ProgressUpdate, sink tasks.Sink, opts tasks.BulkExportOpts) (*tasks.BulkExportResult, error)
}

// Options configures a [Model]. A nil Exporter or Sink disables exports.
type Options struct {
	Exporter Exporter
	Sink     tasks.Sink
	Format   string
	Listing  listing.Options
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	catalog Catalog
	opts    Options

	width    int
	height   int
	songList list.Model
	songs    []*models.Song
	beats    []string
	beatIdx  int
	sort     listing.Options
	selected *models.Song

	progressChan chan tasks.ProgressUpdate
	doneChan     chan exportDone
	progress     tasks.ProgressUpdate
	result       *tasks.BulkExportResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, catalog Catalog, opts Options) *Model {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	return &Model{
		ctx:      ctx,
		view:     SongListView,
		catalog:  catalog,
		opts:     opts,
		sort:     opts.Listing,
		beats:    []string{listing.AllBeats},
		songList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the catalog.
func (m *Model) Init() tea.Cmd {
	return m.loadSongs()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.songList.SetSize(max(msg.Width-4, 0), max(msg.Height-8, 0))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SongListView:
			return m.handleSongListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == SongListView {
		var cmd tea.Cmd
		m.songList, cmd = m.songList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSongsLoaded:
		data := msg.data.(songsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		m.songs = data.songs
		m.beats = listing.BeatButtons(m.songs)
		m.beatIdx = 0
		m.refresh()
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgExportComplete:
		data := msg.data.(exportDone)
		m.result, m.err = data.result, data.err
		m.progressChan, m.doneChan = nil, nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// refresh rebuilds the visible list from the beat filter and sort options.
func (m *Model) refresh() {
	visible := slices.Clone(listing.FilterByBeat(m.songs, m.currentBeat()))
	listing.Sort(visible, m.sort)
	m.songList.SetItems(songItems(visible))
	m.songList.Title = m.listTitle(len(visible))
}

func (m *Model) currentBeat() string {
	if m.beatIdx < len(m.beats) {
		return m.beats[m.beatIdx]
	}
	return listing.AllBeats
}

func (m *Model) listTitle(n int) string {
	order := "title"
	switch {
	case m.sort.ByBeat && m.sort.ByKey:
		order = "beat, key"
	case m.sort.ByBeat:
		order = "beat"
	case m.sort.ByKey:
		order = "key"
	}
	if m.sort.ByKey && m.sort.MusicalKeys {
		order += " (chromatic)"
	}
	return fmt.Sprintf("Songs (%d) · beat: %s · sort: %s", n, m.currentBeat(), order)
}

func (m *Model) handleSongListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.songList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.songList, cmd = m.songList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if it, ok := m.songList.SelectedItem().(songItem); ok {
			m.selected = it.song
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.beatSort):
		m.sort.ByBeat = !m.sort.ByBeat
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.keySort):
		m.sort.ByKey = !m.sort.ByKey
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.musical):
		m.sort.MusicalKeys = !m.sort.MusicalKeys
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.beatFilter):
		m.beatIdx = (m.beatIdx + 1) % len(m.beats)
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.export):
		if m.opts.Exporter != nil && m.opts.Sink != nil {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.selected = nil
		m.view = SongListView
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = SongListView
		return m, nil
	case "y":
		m.view = ExportView
		return m, m.startExport()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = SongListView
		m.result = nil
		m.err = nil
		return m, m.loadSongs()
	}
	return m, nil
}

func (m *Model) loadSongs() tea.Cmd {
	return func() tea.Msg {
		songs, err := m.catalog.ListSongs(m.ctx, store.SongFilter{})
		return songsLoadedMsg(songs, err)
	}
}

func (m *Model) startExport() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan exportDone, 1)
	m.progressChan, m.doneChan = progress, done

	opts := tasks.BulkExportOpts{Format: m.opts.Format, Sort: m.sort}
	go func() {
		result, err := m.opts.Exporter.BulkExport(m.ctx, progress, m.opts.Sink, opts)
		done <- exportDone{result: result, err: err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return exportCompleteMsg(exportDone{result: m.result, err: m.err})
		}

		update, ok := <-progress
		if !ok {
			return exportCompleteMsg(<-done)
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case SongListView:
		return m.renderSongList()
	case DetailView:
		return m.renderDetail()
	case ConfirmView:
		return m.renderConfirm()
	case ExportView:
		return m.renderExport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderSongList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.beatSort, m.keys.keySort, m.keys.beatFilter}
	if m.opts.Exporter != nil && m.opts.Sink != nil {
		helpKeys = append(helpKeys, m.keys.export)
	}
	helpKeys = append(helpKeys, m.keys.quit)
	return fmt.Sprintf("%s\n\n%s", m.songList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDetail() string {
	s := m.selected
	var b strings.Builder
	b.WriteString(styles.title.Render(s.Title))
	b.WriteString("\n")

	for _, f := range models.CategoryFields() {
		values := s.Values(f.Name)
		if len(values) == 0 {
			continue
		}
		text := strings.Join(values, ", ")
		switch f.Name {
		case models.FieldBeat:
			text = beat.DisplayText(s.Beat)
			if beat.IsRhythmChanges(s.Beat) {
				text += " " + styles.On(beat.RhythmChangesLabel, accent)
			}
		case models.FieldEvent:
			for _, e := range values {
				if label := listing.WeddingLabel(e); label != "" {
					text += " " + styles.On("wedding: "+label, accent)
					break
				}
			}
		}
		fmt.Fprintf(&b, "%s %s\n", styles.label.Render(string(f.Name)), text)
	}

	if strings.TrimSpace(s.Lyrics) != "" {
		fmt.Fprintf(&b, "\n%s\n%s\n", styles.As("Lyrics", accent), s.Lyrics)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s", b.String(), helpView)
}

func (m *Model) renderConfirm() string {
	n := len(m.songList.Items())
	title := styles.title.Render(fmt.Sprintf("Export %d songs as %s?", len(m.songs), m.opts.Format))
	info := fmt.Sprintf("\nOrder: %s\nVisible in list: %d\n", m.listTitle(n), n)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderExport() string {
	title := styles.title.Render("Exporting Catalog")

	var phase string
	switch m.progress.Phase {
	case tasks.ExportSongs, tasks.ExportPlaylists:
		phase = fmt.Sprintf("Exporting files (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.WriteManifest:
		phase = "Writing manifest..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Export failed: %v\n\nPress r to go back, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to go back, q to quit")
	}

	title := styles.ok.Render("✓ Export Complete!")
	info := fmt.Sprintf("\nFiles: %d exported, %d failed\nManifest: %s",
		m.result.Successful, m.result.Failed, m.result.ManifestLocation)

	var files string
	for _, r := range m.result.Results {
		if r.Error != nil {
			files += "\n" + styles.warn.Render(fmt.Sprintf("  • %s: %v", r.Name, r.Error))
			continue
		}
		files += fmt.Sprintf("\n  • %s (%d songs) → %s", r.Name, r.Songs, r.Location)
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", title, info, files, m.help.ShortHelpView(helpKeys))
}
