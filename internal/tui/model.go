// Package tui is the terminal front end of the log console: a scrolling log viewport with
// keyword, level and limit filters and an auto-refresh toggle.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-console/internal/core"
	"github.com/book-expert/tts-console/internal/logview"
	"github.com/book-expert/tts-console/internal/snapshot"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Layout.
const (
	defaultWidth  = 100
	defaultHeight = 24
	chromeHeight  = 5
	fieldCount    = 3
)

// Filter fields, in focus order.
const (
	fieldKeyword = iota
	fieldLevel
	fieldLimit
	focusLogs = -1
)

// Saver stores a snapshot of the visible entries.
type Saver interface {
	Save(ctx context.Context, entries []logview.Entry) (*snapshot.SavedEvent, error)
}

// reconnectMsg asks the model to open a new log stream.
type reconnectMsg struct{}

// streamEventMsg carries one event of the connection opened in generation.
type streamEventMsg struct {
	generation int
	event      core.StreamEvent
	ok         bool
}

// snapshotMsg reports the outcome of a snapshot.
type snapshotMsg struct {
	saved *snapshot.SavedEvent
	err   error
}

// Model is the console's bubbletea model.
type Model struct {
	ctx        context.Context
	viewer     *logview.Viewer
	options    logview.Options
	saver      Saver
	log        *logger.Logger
	keys       KeyMap
	styles     Styles
	viewport   viewport.Model
	surface    *viewportSurface
	inputs     [fieldCount]textinput.Model
	focus      int
	generation int
	status     string
	width      int
	height     int
}

// New creates the console model. The stream is opened by Init. saver may be nil, which
// disables snapshots.
func New(ctx context.Context, dialer core.Dialer, options logview.Options, saver Saver, log *logger.Logger) *Model {
	model := &Model{
		ctx:        ctx,
		viewer:     logview.NewViewer(dialer, options, log),
		options:    options,
		saver:      saver,
		log:        log,
		keys:       DefaultKeyMap(),
		styles:     DefaultStyles(),
		viewport:   viewport.New(defaultWidth, defaultHeight-chromeHeight),
		surface:    nil,
		inputs:     [fieldCount]textinput.Model{},
		focus:      focusLogs,
		generation: 0,
		status:     "",
		width:      defaultWidth,
		height:     defaultHeight,
	}

	model.surface = &viewportSurface{view: &model.viewport, styles: model.styles, clamped: false}

	model.inputs[fieldKeyword] = newInput("keyword", "text to find", options.Criteria.Keyword)
	model.inputs[fieldLevel] = newInput("level", "INFO, ERROR...", options.Criteria.Level)
	model.inputs[fieldLimit] = newInput("limit", strconv.Itoa(logview.DefaultLimit), strconv.Itoa(options.Criteria.Limit))
	model.inputs[fieldLimit].CharLimit = 7

	model.resize(defaultWidth, defaultHeight)

	return model
}

func newInput(prompt, placeholder, value string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt + ": "
	input.Placeholder = placeholder
	input.SetValue(value)

	return input
}

// Init opens the log stream.
func (m *Model) Init() tea.Cmd {
	return func() tea.Msg { return reconnectMsg{} }
}

// Close closes the current stream.
func (m *Model) Close() error {
	err := m.viewer.Close()
	if err != nil {
		return fmt.Errorf("failed to close log view: %w", err)
	}

	return nil
}

// Session returns the current log view session, nil before the stream is opened.
func (m *Model) Session() *logview.Session {
	return m.viewer.Session()
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.update(msg)

	// A shorter selection may have pulled the viewport up to the new bottom.
	if m.surface.takeClamped() {
		m.scrolled()
	}

	return model, cmd
}

func (m *Model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case reconnectMsg:
		return m, m.open()
	case streamEventMsg:
		return m, m.handleStreamEvent(msg)
	case snapshotMsg:
		m.handleSnapshot(msg)

		return m, nil
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m, m.updateViewport(msg)
	}

	return m, nil
}

// open replaces the session and connection, carrying the filter state over.
func (m *Model) open() tea.Cmd {
	autoRefresh := m.options.AutoRefresh
	if current := m.viewer.Session(); current != nil {
		autoRefresh = current.AutoRefresh()
	}

	session, err := m.viewer.Open(m.ctx, m.surface)
	if err != nil {
		m.status = err.Error()
	} else {
		m.status = "connected"
	}

	session.SetAutoRefresh(autoRefresh)
	session.SetCriteria(m.criteria())

	m.generation++

	return waitForEvent(m.generation, m.viewer.Events())
}

func waitForEvent(generation int, events <-chan core.StreamEvent) tea.Cmd {
	if events == nil {
		return nil
	}

	return func() tea.Msg {
		event, ok := <-events

		return streamEventMsg{generation: generation, event: event, ok: ok}
	}
}

func (m *Model) handleStreamEvent(msg streamEventMsg) tea.Cmd {
	if msg.generation != m.generation || !msg.ok {
		return nil
	}

	err := m.viewer.Dispatch(msg.event)
	if err != nil {
		m.log.Warn("Failed to dispatch log stream event: %v", err)
	}

	if msg.event.Kind == core.StreamFailed {
		m.status = "disconnected, press ctrl+r to reconnect"
	}

	return waitForEvent(m.generation, m.viewer.Events())
}

func (m *Model) handleSnapshot(msg snapshotMsg) {
	if msg.err != nil {
		m.log.Error("Failed to save log snapshot: %v", msg.err)
		m.status = "snapshot failed: " + msg.err.Error()

		return
	}

	m.log.Info("Saved log snapshot %s with %d entries.", msg.saved.SnapshotKey, msg.saved.Entries)
	m.status = "snapshot saved: " + msg.saved.SnapshotKey
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Reconnect):
		return m, m.open()
	case key.Matches(msg, m.keys.Snapshot):
		return m, m.snapshot()
	case key.Matches(msg, m.keys.AutoRefresh):
		m.toggleAutoRefresh()

		return m, nil
	case key.Matches(msg, m.keys.NextField):
		return m, m.setFocus((m.focus+2)%(fieldCount+1) - 1)
	case key.Matches(msg, m.keys.PrevField):
		return m, m.setFocus((m.focus+fieldCount+1)%(fieldCount+1) - 1)
	case key.Matches(msg, m.keys.Blur):
		return m, m.setFocus(focusLogs)
	}

	if m.focus != focusLogs {
		return m, m.updateInput(msg)
	}

	if key.Matches(msg, m.keys.Bottom) {
		m.viewport.GotoBottom()
		m.scrolled()

		return m, nil
	}

	return m, m.updateViewport(msg)
}

func (m *Model) setFocus(focus int) tea.Cmd {
	m.focus = focus

	var cmd tea.Cmd

	for i := range m.inputs {
		if i == focus {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}

	return cmd
}

// updateInput feeds msg to the focused filter and applies its value.
func (m *Model) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

	session := m.viewer.Session()
	if session == nil {
		return cmd
	}

	switch m.focus {
	case fieldKeyword:
		session.SetKeyword(m.inputs[fieldKeyword].Value())
	case fieldLevel:
		session.SetLevel(m.inputs[fieldLevel].Value())
	case fieldLimit:
		session.SetLimit(m.inputs[fieldLimit].Value())
	}

	return cmd
}

func (m *Model) updateViewport(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)
	m.scrolled()

	return cmd
}

// scrolled reports the viewport position so the session knows whether to follow new lines.
func (m *Model) scrolled() {
	session := m.viewer.Session()
	if session == nil {
		return
	}

	session.Scrolled(logview.ScrollPosition{
		Offset: m.viewport.YOffset,
		Height: m.viewport.Height,
		Total:  m.viewport.TotalLineCount(),
	})
}

func (m *Model) toggleAutoRefresh() {
	session := m.viewer.Session()
	if session == nil {
		return
	}

	session.SetAutoRefresh(!session.AutoRefresh())
}

func (m *Model) snapshot() tea.Cmd {
	session := m.viewer.Session()
	if m.saver == nil || session == nil {
		m.status = "snapshots are not configured"

		return nil
	}

	entries := session.Visible()
	saver := m.saver
	ctx := m.ctx

	m.status = fmt.Sprintf("saving %d entries...", len(entries))

	return func() tea.Msg {
		saved, err := saver.Save(ctx, entries)

		return snapshotMsg{saved: saved, err: err}
	}
}

func (m *Model) criteria() logview.Criteria {
	return logview.Criteria{
		Level:   m.inputs[fieldLevel].Value(),
		Keyword: m.inputs[fieldKeyword].Value(),
		Limit:   logview.ParseLimit(m.inputs[fieldLimit].Value()),
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	m.viewport.Width = width
	m.viewport.Height = max(height-chromeHeight, 1)

	inputWidth := max(width/fieldCount-len("keyword: ")-4, 4)
	for i := range m.inputs {
		m.inputs[i].Width = inputWidth
	}

	if session := m.viewer.Session(); session != nil {
		session.Render()
	}
}

// View renders the console.
func (m *Model) View() string {
	fields := make([]string, len(m.inputs))
	for i := range m.inputs {
		style := m.styles.Field
		if i == m.focus {
			style = m.styles.Focused
		}

		fields[i] = style.Render(m.inputs[i].View())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render("log console")+"  "+m.styles.Status.Render(m.statusLine()),
		lipgloss.JoinHorizontal(lipgloss.Top, fields...),
		m.viewport.View(),
		m.styles.Help.Render(m.helpLine()),
	)
}

func (m *Model) statusLine() string {
	session := m.viewer.Session()
	if session == nil {
		return "connecting..."
	}

	autoRefresh := "off"
	if session.AutoRefresh() {
		autoRefresh = "on"
	}

	follow := "scrolled"
	if session.Pinned() {
		follow = "following"
	}

	parts := []string{
		fmt.Sprintf("auto-refresh %s", autoRefresh),
		fmt.Sprintf("%d/%d shown", len(session.Visible()), session.Len()),
		follow,
	}

	if m.status != "" {
		parts = append(parts, m.status)
	}

	return strings.Join(parts, " | ")
}

func (m *Model) helpLine() string {
	bindings := m.keys.help()

	parts := make([]string, len(bindings))
	for i, binding := range bindings {
		help := binding.Help()
		parts[i] = help.Key + " " + help.Desc
	}

	return strings.Join(parts, " • ")
}
