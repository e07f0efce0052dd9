package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/offline"
	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/desertthunder/hlsx/internal/tasks"
	"github.com/desertthunder/hlsx/internal/tracker"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CatalogView ViewState = iota
	TrackSelectView
	ConfirmView
)

// Cache is the part of [offline.Manager] the TUI drives.
type Cache interface {
	Catalog() []shared.CatalogEntry
	Status(id models.ResourceID) (models.CacheEntry, error)
	Tracks(ctx context.Context, id models.ResourceID) ([]models.TrackOption, error)
	Download(ctx context.Context, id models.ResourceID, chooser offline.Chooser) (bool, error)
	Remove(id models.ResourceID) bool
	AddListener(l tracker.Listener)
	RemoveListener(l tracker.Listener)
}

var _ Cache = (*offline.Manager)(nil)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	cache    Cache
	view     ViewState
	width    int
	height   int
	catalog  list.Model
	tracks   list.Model
	target   streamItem
	progress <-chan tasks.ProgressUpdate
	last     *tasks.ProgressUpdate
	changes  chan struct{}
	listener *tracker.FuncListener
	notice   string
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a TUI model and registers it as a tracker listener. progress may be nil.
func NewModel(ctx context.Context, cache Cache, progress <-chan tasks.ProgressUpdate) *Model {
	m := &Model{
		ctx:      ctx,
		cache:    cache,
		view:     CatalogView,
		width:    80,
		height:   24,
		catalog:  newList("Catalog", nil),
		tracks:   newList("Tracks", nil),
		progress: progress,
		changes:  make(chan struct{}, 1),
		help:     help.New(),
		keys:     newKeyMap(),
	}
	m.listener = tracker.NewFuncListener(func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	cache.AddListener(m.listener)
	return m
}

// Close detaches the model's tracker listener.
func (m *Model) Close() { m.cache.RemoveListener(m.listener) }

// Run starts the TUI and blocks until the user quits or ctx ends.
func Run(ctx context.Context, cache Cache, progress <-chan tasks.ProgressUpdate, opts ...tea.ProgramOption) error {
	m := NewModel(ctx, cache, progress)
	defer m.Close()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui exited: %w", err)
	}
	return m.err
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 76, 16)
	l.Title = title
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	return l
}

// Init loads the catalog and starts listening for changes and progress.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadCatalog(), m.waitForChange(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.catalog.SetSize(msg.Width-4, msg.Height-8)
		m.tracks.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CatalogView:
			return m.handleCatalogKeys(msg)
		case TrackSelectView:
			return m.handleTrackKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgCatalogLoaded:
		data := msg.data.(catalogLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.items))
		for i, it := range data.items {
			items[i] = it
		}
		return m, m.catalog.SetItems(items)

	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		if data.err != nil {
			m.notice = styles.err.Render(fmt.Sprintf("Failed to list tracks: %v", data.err))
			return m, nil
		}
		if len(data.options) == 0 {
			m.notice = "No selectable tracks, downloading the whole stream"
			return m, m.download(data.id, offline.SelectAll)
		}
		items := make([]list.Item, len(data.options))
		for i, o := range data.options {
			items[i] = trackItem{option: o}
		}
		m.tracks = newList(fmt.Sprintf("Tracks in '%s'", m.target.stream.Name), items)
		m.tracks.SetSize(m.width-4, m.height-8)
		m.view = TrackSelectView
		return m, nil

	case MsgDownloadStarted:
		data := msg.data.(actionResult)
		switch {
		case data.err != nil:
			m.notice = styles.err.Render(fmt.Sprintf("Download failed: %v", data.err))
		case data.ok:
			m.notice = fmt.Sprintf("Downloading %s", data.id)
		default:
			m.notice = fmt.Sprintf("%s is already cached", data.id)
		}
		return m, m.loadCatalog()

	case MsgRemoveSubmitted:
		data := msg.data.(actionResult)
		if data.ok {
			m.notice = fmt.Sprintf("Removing %s", data.id)
		} else {
			m.notice = fmt.Sprintf("%s is not cached", data.id)
		}
		return m, m.loadCatalog()

	case MsgTrackedChanged:
		return m, tea.Batch(m.loadCatalog(), m.waitForChange())

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.last = &update
		return m, m.waitForProgress()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case CatalogView:
		return m.renderCatalog()
	case TrackSelectView:
		return m.renderTracks()
	case ConfirmView:
		return m.renderConfirm()
	default:
		return ""
	}
}

func (m *Model) handleCatalogKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.catalog.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.catalog, cmd = m.catalog.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if it, ok := m.selectedStream(); ok {
			m.target = it
			return m, m.fetchTracks(it.id())
		}
	case key.Matches(msg, m.keys.download):
		if it, ok := m.selectedStream(); ok {
			return m, m.download(it.id(), offline.SelectAll)
		}
	case key.Matches(msg, m.keys.remove):
		if it, ok := m.selectedStream(); ok {
			if it.status.State == "not cached" || it.status.State == "" {
				m.notice = fmt.Sprintf("%s is not cached", it.stream.Name)
				return m, nil
			}
			m.target = it
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.catalog, cmd = m.catalog.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = CatalogView
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		idx := m.tracks.Index()
		if it, ok := m.tracks.SelectedItem().(trackItem); ok {
			it.selected = !it.selected
			return m, m.tracks.SetItem(idx, it)
		}
		return m, nil
	case key.Matches(msg, m.keys.all):
		var cmds []tea.Cmd
		for i, item := range m.tracks.Items() {
			it := item.(trackItem)
			it.selected = true
			cmds = append(cmds, m.tracks.SetItem(i, it))
		}
		return m, tea.Batch(cmds...)
	case key.Matches(msg, m.keys.enter):
		keys := m.selectedKeys()
		if len(keys) == 0 {
			m.notice = "No tracks selected"
			return m, nil
		}
		m.view = CatalogView
		return m, m.download(m.target.id(), offline.SelectKeys(keys...))
	}

	var cmd tea.Cmd
	m.tracks, cmd = m.tracks.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = CatalogView
		return m, m.remove(m.target.id())
	case key.Matches(msg, m.keys.no):
		m.view = CatalogView
		return m, nil
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case CatalogView:
		m.catalog, cmd = m.catalog.Update(msg)
	case TrackSelectView:
		m.tracks, cmd = m.tracks.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedStream() (streamItem, bool) {
	it, ok := m.catalog.SelectedItem().(streamItem)
	return it, ok
}

func (m *Model) selectedKeys() []models.TrackKey {
	var keys []models.TrackKey
	for _, item := range m.tracks.Items() {
		if it := item.(trackItem); it.selected {
			keys = append(keys, it.option.Key)
		}
	}
	return keys
}

func (m *Model) loadCatalog() tea.Cmd {
	return func() tea.Msg {
		streams := m.cache.Catalog()
		items := make([]streamItem, 0, len(streams))
		for _, s := range streams {
			status, err := m.cache.Status(models.ResourceID(s.URI))
			if err != nil {
				return catalogLoadedMsg(nil, err)
			}
			items = append(items, streamItem{stream: s, status: status})
		}
		return catalogLoadedMsg(items, nil)
	}
}

func (m *Model) fetchTracks(id models.ResourceID) tea.Cmd {
	return func() tea.Msg {
		options, err := m.cache.Tracks(m.ctx, id)
		return tracksFetchedMsg(id, options, err)
	}
}

func (m *Model) download(id models.ResourceID, chooser offline.Chooser) tea.Cmd {
	return func() tea.Msg {
		started, err := m.cache.Download(m.ctx, id, chooser)
		return downloadStartedMsg(id, started, err)
	}
}

func (m *Model) remove(id models.ResourceID) tea.Cmd {
	return func() tea.Msg {
		return removeSubmittedMsg(id, m.cache.Remove(id))
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return trackedChangedMsg()
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progress == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update, ok := <-m.progress:
			if !ok {
				return nil
			}
			return progressUpdateMsg(update)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) footer(bindings ...key.Binding) string {
	var b strings.Builder
	if m.notice != "" {
		b.WriteString(m.notice)
		b.WriteString("\n")
	}
	if m.last != nil {
		b.WriteString(styles.help.Render(fmt.Sprintf("%s %s %s", m.last.Phase, m.last.Kind, m.last.Resource)))
		if m.last.Message != "" {
			b.WriteString(styles.help.Render(": " + m.last.Message))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.help.ShortHelpView(bindings))
	return b.String()
}

func (m *Model) renderCatalog() string {
	return fmt.Sprintf("%s\n\n%s", m.catalog.View(),
		m.footer(m.keys.enter, m.keys.download, m.keys.remove, m.keys.quit))
}

func (m *Model) renderTracks() string {
	downloadKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "download"))
	return fmt.Sprintf("%s\n\n%s", m.tracks.View(),
		m.footer(m.keys.toggle, m.keys.all, downloadKey, m.keys.back, m.keys.quit))
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Remove '%s' from the cache?", m.target.stream.Name))
	info := fmt.Sprintf("\nStream: %s\nFiles: %d (%s)\n",
		m.target.stream.URI, m.target.status.Files, shared.FormatBytes(m.target.status.Bytes))
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.footer(m.keys.yes, m.keys.no, m.keys.quit))
}
