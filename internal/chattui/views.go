package chattui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/srmsweets/hrportal/internal/chat"
	"github.com/srmsweets/hrportal/internal/models"
)

const emptyConversationText = "No messages yet. Say hello!"

func (m *Model) renderHeader(width int) string {
	p := paletteFor(m.theme)
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Foreground)).
		Background(lipgloss.Color(p.Header)).
		Bold(true).
		Padding(0, 1)

	left := "HR Chat"
	center := m.engine.Identity().DisplayName
	right := fmt.Sprintf("unread %d  requests %d", m.engine.TotalUnread(), m.engine.PendingRequests())
	return style.Width(maxInt(0, width)).Render(joinHeader(left, center, right, maxInt(0, width-2)))
}

func (m *Model) renderFooter(width int) string {
	p := paletteFor(m.theme)
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Foreground)).
		Background(lipgloss.Color(p.Footer)).
		Padding(0, 1)

	var hints string
	switch m.focus {
	case focusCompose:
		hints = "enter send  esc/tab back to groups  ctrl+c quit"
	case focusCreate:
		hints = "tab switch field  enter pick member  ctrl+s create  esc cancel"
	default:
		hints = "j/k move  enter open  n new group  d delete  r refresh  ? help  q quit"
		if m.showHelp {
			hints += "  (toast: enter opens, esc dismisses)"
		}
	}
	line := hints
	if m.status != "" {
		status := m.status
		if m.statusIsErr {
			status = p.fg(p.Failed).Render(status)
		}
		line = status + "  |  " + hints
	}
	return style.Width(maxInt(0, width)).Render(truncateVis(line, maxInt(0, width-2)))
}

func (m *Model) renderToast(width int) string {
	alert, ok := m.engine.Alert()
	if !ok {
		return ""
	}
	p := paletteFor(m.theme)
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(p.Foreground)).
		Background(lipgloss.Color(p.Toast)).
		Bold(true).
		Padding(0, 1)
	text := alert.Text()
	if alert.Preview != "" {
		text += ": " + alert.Preview
	}
	text += "  [enter open, esc dismiss]"
	return style.Width(maxInt(0, width)).Render(truncateVis(text, maxInt(0, width-2)))
}

func (m *Model) renderSidebar(width, height int) string {
	p := paletteFor(m.theme)
	inner := maxInt(4, width-4)
	viewer := m.engine.Identity().UserID
	active := m.engine.ActiveGroupID()
	groups := m.engine.Groups()

	lines := []string{p.fg(p.Accent).Bold(true).Render("Groups"), ""}
	if len(groups) == 0 {
		lines = append(lines, p.muted().Render("No groups yet. Press n."))
	}
	for i, g := range groups {
		lines = append(lines, m.groupRow(g, viewer, active, i == m.cursor, inner, p)...)
	}
	lines = fitTail(lines, maxInt(1, height-2), m.cursorLine(len(groups)))

	focused := m.focus == focusSidebar
	return p.border(focused).Width(width - 2).Height(maxInt(1, height-2)).Render(strings.Join(lines, "\n"))
}

// cursorLine is the first rendered line of the highlighted row.
func (m *Model) cursorLine(n int) int {
	if n == 0 {
		return 0
	}
	return 2 + m.cursor*2 + 1
}

func (m *Model) groupRow(g models.Group, viewer, active string, highlighted bool, width int, p palette) []string {
	badge := ""
	// The open group never shows a badge.
	if g.ID != active {
		if n := g.Unread(viewer); n > 0 {
			badge = " " + p.fg(p.Badge).Bold(true).Render(fmt.Sprintf("(%d)", n))
		}
	}
	owner := ""
	if g.OwnedBy(viewer) {
		owner = " *"
	}

	title := fmt.Sprintf("[%s] %s%s", g.Initials(), g.Name, owner)
	title = truncateVis(title, maxInt(1, width-lipgloss.Width(badge))) + badge
	preview := g.Preview()
	if g.LastMessageSender != "" && strings.TrimSpace(g.LastMessage) != "" {
		preview = g.LastMessageSender + ": " + preview
	}
	age := ""
	if !g.UpdatedAt.IsZero() {
		age = " " + relativeTime(g.UpdatedAt.Time, m.now())
	}
	preview = "  " + truncateVis(preview, maxInt(1, width-2-len(age))) + age

	titleStyle := lipgloss.NewStyle()
	switch {
	case highlighted:
		titleStyle = titleStyle.Foreground(lipgloss.Color(p.Selected)).Bold(true)
	case g.ID == active:
		titleStyle = titleStyle.Foreground(lipgloss.Color(p.Accent))
	}
	return []string{titleStyle.Render(title), p.muted().Render(preview)}
}

func (m *Model) renderConversation(width, height int) string {
	p := paletteFor(m.theme)
	inner := maxInt(8, width-4)
	focused := m.focus == focusCompose
	box := p.border(focused).Width(width - 2).Height(maxInt(1, height-2))

	group, ok := m.engine.ActiveGroup()
	if m.engine.ActiveGroupID() == "" {
		hint := p.muted().Render("Select a group to start chatting")
		return box.Render(lipgloss.Place(inner, maxInt(1, height-2), lipgloss.Center, lipgloss.Center, hint))
	}

	title := m.engine.ActiveGroupID()
	if ok {
		title = fmt.Sprintf("%s  (%d members)", group.Name, len(group.Members))
	}
	head := p.fg(p.Accent).Bold(true).Render(truncateVis(title, inner))

	composeView := m.compose.View()
	bodyHeight := maxInt(1, height-2-lipgloss.Height(head)-lipgloss.Height(composeView)-2)

	entries := m.engine.Timeline()
	var lines []string
	if len(entries) == 0 {
		lines = []string{p.muted().Render(emptyConversationText)}
	} else {
		for _, entry := range entries {
			lines = append(lines, renderEntry(entry, inner, p)...)
			lines = append(lines, "")
		}
		lines = lines[:len(lines)-1]
	}
	lines = fitTail(lines, bodyHeight, len(lines)-1)
	for len(lines) < bodyHeight {
		lines = append(lines, "")
	}

	parts := []string{head, ""}
	parts = append(parts, lines...)
	parts = append(parts, "", composeView)
	return box.Render(strings.Join(parts, "\n"))
}

func renderEntry(entry chat.TimelineEntry, width int, p palette) []string {
	msg := entry.Message
	name := msg.SenderName
	if name == "" {
		name = msg.SenderID
	}
	color := p.Other
	align := lipgloss.Left
	if entry.Own {
		name = "You"
		color = p.Own
		align = lipgloss.Right
	}

	meta := name
	if !msg.Timestamp.IsZero() {
		meta += "  " + msg.Timestamp.Local().Format("15:04")
	}
	switch entry.Status {
	case chat.StatusPending:
		meta += "  " + p.fg(p.Pending).Render("sending...")
	case chat.StatusFailed:
		meta += "  " + p.fg(p.Failed).Render("failed")
	}

	bubbleWidth := maxInt(8, width*3/4)
	out := []string{p.fg(color).Bold(true).Render(meta)}
	out = append(out, wrapLines(msg.Content, bubbleWidth)...)
	if entry.Status == chat.StatusFailed && entry.Err != nil {
		out = append(out, p.fg(p.Failed).Render(truncateVis(entry.Err.Error(), bubbleWidth)))
	}
	for i := range out {
		out[i] = lipgloss.PlaceHorizontal(width, align, out[i])
	}
	return out
}

// fitTail keeps at most height lines with line keep inside the window,
// preferring the end.
func fitTail(lines []string, height, keep int) []string {
	if height <= 0 || len(lines) <= height {
		return lines
	}
	start := len(lines) - height
	if keep < start {
		start = maxInt(0, keep-1)
	}
	end := minInt(len(lines), start+height)
	return lines[start:end]
}

func wrapLines(text string, width int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if width <= 0 {
		return strings.Split(text, "\n")
	}
	return strings.Split(wordwrap.String(text, width), "\n")
}

func joinHeader(left, center, right string, width int) string {
	if width <= 0 {
		return left
	}
	space := width - lipgloss.Width(left) - lipgloss.Width(center) - lipgloss.Width(right)
	if space < 2 {
		return truncateVis(left+"  "+right, width)
	}
	leftGap := space / 2
	rightGap := space - leftGap
	return left + strings.Repeat(" ", leftGap) + center + strings.Repeat(" ", rightGap) + right
}

func truncateVis(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 3 {
		return truncate.String(s, uint(width))
	}
	return truncate.StringWithTail(s, uint(width), "...")
}

func relativeTime(ts, now time.Time) string {
	delta := now.Sub(ts)
	if delta < 0 {
		delta = 0
	}
	switch {
	case delta < time.Minute:
		return "now"
	case delta < time.Hour:
		return fmt.Sprintf("%dm", int(delta.Minutes()))
	case delta < 24*time.Hour:
		return fmt.Sprintf("%dh", int(delta.Hours()))
	default:
		return fmt.Sprintf("%dd", int(delta.Hours()/24))
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
