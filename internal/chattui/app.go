// Package chattui is the terminal console for HR group messaging: a group
// list, the open conversation, a compose line and the activity toast.
package chattui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/srmsweets/hrportal/internal/chat"
	"github.com/srmsweets/hrportal/internal/events"
	"github.com/srmsweets/hrportal/internal/logging"
	"github.com/srmsweets/hrportal/internal/models"
)

const (
	sidebarWidth = 40
	eventBuffer  = 64
	composeLimit = 2000
)

// Engine is the messaging surface the console drives. *chat.Engine
// implements it.
type Engine interface {
	Identity() models.Identity
	Subscribe(id string, filter events.Filter, handler events.EventHandler) error
	Unsubscribe(id string) error

	Refresh(ctx context.Context) error
	Groups() []models.Group
	TotalUnread() int
	ActiveGroupID() string
	ActiveGroup() (models.Group, bool)
	SelectGroup(ctx context.Context, groupID string) error
	ClearSelection()
	Timeline() []chat.TimelineEntry

	Send(ctx context.Context, content string) (models.Message, error)
	CreateGroup(ctx context.Context, name string, members []string) (*models.Group, error)
	DeleteGroup(ctx context.Context, groupID string) error

	Alert() (chat.Alert, bool)
	OpenAlert(ctx context.Context) (string, error)
	DismissAlert()

	PendingRequests() int
	Employees(ctx context.Context, filter string) ([]models.Employee, error)
}

// Config configures the console.
type Config struct {
	Theme string
	// Now is the clock used for message times; nil means time.Now.
	Now func() time.Time
}

func (c Config) normalize() (Config, error) {
	c.Theme = strings.TrimSpace(c.Theme)
	if c.Theme == "" {
		c.Theme = string(ThemeDefault)
	}
	switch Theme(c.Theme) {
	case ThemeDefault, ThemeHighContrast:
	default:
		return Config{}, fmt.Errorf("invalid theme %q", c.Theme)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c, nil
}

type focus int

const (
	focusSidebar focus = iota
	focusCompose
	focusCreate
)

// Model is the bubbletea model of the console.
type Model struct {
	ctx    context.Context
	engine Engine
	theme  Theme
	now    func() time.Time
	logger zerolog.Logger

	width    int
	height   int
	showHelp bool

	focus   focus
	cursor  int
	compose textinput.Model
	form    *createForm

	status      string
	statusIsErr bool

	subID  string
	events chan *models.Event
}

// engineEventMsg carries an engine event into the update loop.
type engineEventMsg struct {
	event *models.Event
}

// actionResultMsg reports a finished engine call started from a key.
type actionResultMsg struct {
	action  string
	groupID string
	info    string
	err     error
}

type employeesMsg struct {
	list []models.Employee
	err  error
}

// NewModel builds the console around engine and subscribes to its events.
func NewModel(ctx context.Context, engine Engine, cfg Config) (*Model, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	compose := textinput.New()
	compose.Placeholder = "Type a message..."
	compose.CharLimit = composeLimit
	compose.Prompt = "> "

	m := &Model{
		ctx:     ctx,
		engine:  engine,
		theme:   Theme(normalized.Theme),
		now:     normalized.Now,
		logger:  logging.Component("tui"),
		compose: compose,
		subID:   "chattui-" + uuid.NewString(),
		events:  make(chan *models.Event, eventBuffer),
	}
	if err := engine.Subscribe(m.subID, events.Filter{}, m.forward); err != nil {
		return nil, fmt.Errorf("subscribe to engine events: %w", err)
	}
	return m, nil
}

// Run opens the console full screen and blocks until the user quits or
// ctx ends.
func Run(ctx context.Context, engine Engine, cfg Config) error {
	model, err := NewModel(ctx, engine, cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	return err
}

// Close drops the event subscription.
func (m *Model) Close() error {
	if m == nil || m.engine == nil {
		return nil
	}
	return m.engine.Unsubscribe(m.subID)
}

// forward runs on engine goroutines. Views re-read engine snapshots on
// every event, so a full buffer may drop events.
func (m *Model) forward(event *models.Event) {
	select {
	case m.events <- event:
	default:
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		return engineEventMsg{event: <-ch}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent(), m.refreshCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.compose.Width = maxInt(10, m.width-sidebarWidth-8)
		return m, nil
	case engineEventMsg:
		m.applyEvent(typed.event)
		return m, m.waitForEvent()
	case actionResultMsg:
		m.applyResult(typed)
		return m, nil
	case employeesMsg:
		if m.form != nil {
			m.form.setCandidates(typed.list, typed.err)
		}
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(typed)
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusCompose:
		m.compose, cmd = m.compose.Update(msg)
	case focusCreate:
		if m.form != nil {
			cmd = m.form.update(msg)
		}
	}
	return m, cmd
}

func (m *Model) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 30
	}

	header := m.renderHeader(width)
	footer := m.renderFooter(width)
	toast := m.renderToast(width)
	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(footer)
	if toast != "" {
		bodyHeight -= lipgloss.Height(toast)
	}
	bodyHeight = maxInt(3, bodyHeight)

	var body string
	if m.focus == focusCreate && m.form != nil {
		body = m.form.view(width, bodyHeight, paletteFor(m.theme))
	} else {
		sidebar := m.renderSidebar(sidebarWidth, bodyHeight)
		main := m.renderConversation(maxInt(20, width-sidebarWidth), bodyHeight)
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	}

	parts := []string{header, body}
	if toast != "" {
		parts = append(parts, toast)
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) applyEvent(event *models.Event) {
	if event == nil {
		return
	}
	switch event.Type {
	case models.EventTypeActionFailed:
		m.setError(event.Message)
	case models.EventTypeDirectoryRefreshed, models.EventTypeGroupSelected:
		m.clampCursor()
	}
}

func (m *Model) applyResult(res actionResultMsg) {
	if res.err != nil {
		m.logger.Debug().Err(res.err).Str("action", res.action).Msg("action failed")
		m.setError(res.action + ": " + res.err.Error())
		return
	}
	switch res.action {
	case "create":
		m.form = nil
		m.focus = focusSidebar
		m.moveCursorTo(res.groupID)
	case "open", "select":
		m.moveCursorTo(res.groupID)
		if res.groupID != "" {
			m.focus = focusCompose
			m.compose.Focus()
		}
	case "delete":
		m.clampCursor()
	}
	if res.info != "" {
		m.setInfo(res.info)
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	switch m.focus {
	case focusCreate:
		return m.handleFormKey(msg)
	case focusCompose:
		return m.handleComposeKey(msg)
	default:
		return m.handleSidebarKey(msg)
	}
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	_, alerting := m.engine.Alert()
	switch msg.String() {
	case "q":
		return tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "up", "k":
		m.cursor--
		m.clampCursor()
	case "down", "j":
		m.cursor++
		m.clampCursor()
	case "enter":
		if alerting {
			return m.openAlertCmd()
		}
		group, ok := m.cursorGroup()
		if !ok {
			return nil
		}
		m.focus = focusCompose
		m.compose.Focus()
		return m.selectCmd(group.ID)
	case "esc":
		if alerting {
			m.engine.DismissAlert()
			return nil
		}
		m.engine.ClearSelection()
	case "tab":
		if m.engine.ActiveGroupID() != "" {
			m.focus = focusCompose
			m.compose.Focus()
		}
	case "r":
		return m.refreshCmd()
	case "n":
		m.form = newCreateForm()
		m.focus = focusCreate
		return m.employeesCmd()
	case "d":
		group, ok := m.cursorGroup()
		if !ok {
			return nil
		}
		if !group.OwnedBy(m.engine.Identity().UserID) {
			m.setError("only the group creator can delete " + group.Name)
			return nil
		}
		return m.deleteCmd(group)
	}
	return nil
}

func (m *Model) handleComposeKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "tab":
		m.focus = focusSidebar
		m.compose.Blur()
		return nil
	case "enter":
		content := m.compose.Value()
		if strings.TrimSpace(content) == "" {
			return nil
		}
		m.compose.Reset()
		return m.sendCmd(content)
	}
	var cmd tea.Cmd
	m.compose, cmd = m.compose.Update(msg)
	return cmd
}

func (m *Model) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	form := m.form
	if form == nil {
		m.focus = focusSidebar
		return nil
	}
	switch msg.String() {
	case "esc":
		m.form = nil
		m.focus = focusSidebar
		return nil
	case "ctrl+s":
		return m.createCmd(form.name.Value(), form.members())
	}
	return form.handleKey(msg)
}

func (m *Model) selectCmd(groupID string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		err := engine.SelectGroup(ctx, groupID)
		return actionResultMsg{action: "select", groupID: groupID, err: err}
	}
}

func (m *Model) openAlertCmd() tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		groupID, err := engine.OpenAlert(ctx)
		return actionResultMsg{action: "open", groupID: groupID, err: err}
	}
}

func (m *Model) sendCmd(content string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		_, err := engine.Send(ctx, content)
		return actionResultMsg{action: "send", groupID: engine.ActiveGroupID(), err: err}
	}
}

func (m *Model) refreshCmd() tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		return actionResultMsg{action: "refresh", err: engine.Refresh(ctx)}
	}
}

func (m *Model) deleteCmd(group models.Group) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		err := engine.DeleteGroup(ctx, group.ID)
		return actionResultMsg{action: "delete", groupID: group.ID, info: "Deleted " + group.Name, err: err}
	}
}

func (m *Model) createCmd(name string, members []string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		created, err := engine.CreateGroup(ctx, name, members)
		if err != nil {
			return actionResultMsg{action: "create", err: err}
		}
		res := actionResultMsg{action: "create", info: "Created " + strings.TrimSpace(name)}
		if created != nil {
			res.groupID = created.ID
		}
		return res
	}
}

func (m *Model) employeesCmd() tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		list, err := engine.Employees(ctx, "")
		return employeesMsg{list: list, err: err}
	}
}

func (m *Model) cursorGroup() (models.Group, bool) {
	groups := m.engine.Groups()
	if m.cursor < 0 || m.cursor >= len(groups) {
		return models.Group{}, false
	}
	return groups[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.engine.Groups())
	m.cursor = clampInt(m.cursor, 0, maxInt(0, n-1))
}

func (m *Model) moveCursorTo(groupID string) {
	if groupID == "" {
		m.clampCursor()
		return
	}
	for i, g := range m.engine.Groups() {
		if g.ID == groupID {
			m.cursor = i
			return
		}
	}
	m.clampCursor()
}

func (m *Model) setError(text string) {
	m.status = text
	m.statusIsErr = true
}

func (m *Model) setInfo(text string) {
	m.status = text
	m.statusIsErr = false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
