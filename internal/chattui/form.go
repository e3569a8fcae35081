package chattui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/srmsweets/hrportal/internal/chat"
	"github.com/srmsweets/hrportal/internal/models"
)

const (
	fieldName = iota
	fieldSearch
)

// createForm collects a group name and members picked through a live
// employee search.
type createForm struct {
	name   textinput.Model
	search textinput.Model
	field  int

	candidates []models.Employee
	loadErr    error
	loaded     bool
	cursor     int

	picked []models.Employee
}

func newCreateForm() *createForm {
	name := textinput.New()
	name.Placeholder = "Group name"
	name.CharLimit = 80
	name.Width = 40
	name.Focus()

	search := textinput.New()
	search.Placeholder = "Search by name or employee id"
	search.CharLimit = 64
	search.Width = 40

	return &createForm{name: name, search: search}
}

func (f *createForm) setCandidates(list []models.Employee, err error) {
	f.candidates = list
	f.loadErr = err
	f.loaded = true
	f.cursor = 0
}

// visible is the candidate list narrowed by the search term.
func (f *createForm) visible() []models.Employee {
	return chat.FilterEmployees(f.candidates, f.search.Value())
}

func (f *createForm) members() []string {
	out := make([]string, 0, len(f.picked))
	for _, e := range f.picked {
		out = append(out, e.EmployeeID)
	}
	return out
}

func (f *createForm) isPicked(id string) bool {
	for _, e := range f.picked {
		if e.EmployeeID == id {
			return true
		}
	}
	return false
}

func (f *createForm) toggle(e models.Employee) {
	for i, p := range f.picked {
		if p.EmployeeID == e.EmployeeID {
			f.picked = append(f.picked[:i], f.picked[i+1:]...)
			return
		}
	}
	f.picked = append(f.picked, e)
}

func (f *createForm) focusField(field int) {
	f.field = field
	if field == fieldName {
		f.name.Focus()
		f.search.Blur()
		return
	}
	f.search.Focus()
	f.name.Blur()
}

func (f *createForm) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "shift+tab":
		if f.field == fieldName {
			f.focusField(fieldSearch)
		} else {
			f.focusField(fieldName)
		}
		return nil
	case "up":
		if f.field == fieldSearch && f.cursor > 0 {
			f.cursor--
		}
		return nil
	case "down":
		if f.field == fieldSearch && f.cursor < len(f.visible())-1 {
			f.cursor++
		}
		return nil
	case "enter":
		if f.field == fieldName {
			f.focusField(fieldSearch)
			return nil
		}
		visible := f.visible()
		if f.cursor >= 0 && f.cursor < len(visible) {
			f.toggle(visible[f.cursor])
		}
		return nil
	}
	return f.update(msg)
}

// update feeds msg to the focused input. Editing the search term resets
// the highlight to the first match.
func (f *createForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if f.field == fieldName {
		f.name, cmd = f.name.Update(msg)
		return cmd
	}
	before := f.search.Value()
	f.search, cmd = f.search.Update(msg)
	if f.search.Value() != before {
		f.cursor = 0
	}
	return cmd
}

func (f *createForm) view(width, height int, p palette) string {
	inner := maxInt(10, width-4)
	lines := []string{
		p.fg(p.Accent).Bold(true).Render("New group"),
		"",
		"Name    " + f.name.View(),
		"Members " + f.search.View(),
		"",
	}

	if len(f.picked) > 0 {
		names := make([]string, 0, len(f.picked))
		for _, e := range f.picked {
			names = append(names, e.Name)
		}
		lines = append(lines, p.fg(p.Badge).Render(truncateVis("Selected: "+strings.Join(names, ", "), inner)), "")
	}

	switch {
	case f.loadErr != nil:
		lines = append(lines, p.fg(p.Failed).Render("Could not load employees: "+f.loadErr.Error()))
	case !f.loaded:
		lines = append(lines, p.muted().Render("Loading employees..."))
	default:
		visible := f.visible()
		if len(visible) == 0 {
			lines = append(lines, p.muted().Render("No employees match"))
		}
		for i, e := range visible {
			mark := "[ ]"
			if f.isPicked(e.EmployeeID) {
				mark = "[x]"
			}
			row := fmt.Sprintf("%s %s  %s", mark, e.Name, e.EmployeeID)
			if e.Branch != "" {
				row += "  " + e.Branch
			}
			row = truncateVis(row, inner)
			if i == f.cursor && f.field == fieldSearch {
				row = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Selected)).Bold(true).Render(row)
			}
			lines = append(lines, row)
		}
	}

	listHeight := maxInt(1, height-2)
	lines = fitTail(lines, listHeight, 6+f.cursor)
	return p.border(true).Width(width - 2).Height(listHeight).Render(strings.Join(lines, "\n"))
}
