// Package scopes implements an interactive picker used when minting a new
// ops API token entry. The selection is rendered as a config snippet by
// the CLI.
package scopes

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle      = lipgloss.NewStyle().MarginLeft(2)
	paginationStyle = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle       = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)
	quitTextStyle   = lipgloss.NewStyle().Margin(1, 0, 2, 4)
)

type item struct {
	scope    string
	desc     string
	selected bool
}

func (i item) Title() string {
	check := "[ ]"
	if i.selected {
		check = "[x]"
	}
	return fmt.Sprintf("%s %s", check, i.scope)
}
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.scope }

// Model is the BubbleTea model for the scope picker.
type Model struct {
	list     list.Model
	quitting bool
	done     bool
	scopes   []string
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case " ": // Space to toggle
			i, ok := m.list.SelectedItem().(item)
			if ok {
				i.selected = !i.selected
				m.list.SetItem(m.list.Index(), i)
			}
			return m, nil

		case "enter":
			m.done = true
			var selected []string
			for _, li := range m.list.Items() {
				if it, ok := li.(item); ok && it.selected {
					selected = append(selected, it.scope)
				}
			}
			m.scopes = selected
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return quitTextStyle.Render("Cancelled.")
	}
	if m.done {
		return quitTextStyle.Render(fmt.Sprintf("Selected scopes: %s", strings.Join(m.scopes, ", ")))
	}
	return "\n" + m.list.View()
}

// New builds a picker over the ops API scope set.
func New() Model {
	known := []struct {
		scope string
		desc  string
	}{
		{"*", "Full administrative access (all scopes)"},
		{"events:ro", "Read-only access to audit records and the event stream"},
		{"events:rw", "Full access to audit records"},
		{"token:ro", "Read access to provider token cache status"},
		{"token:rw", "Force-refresh provider tokens"},
	}

	items := make([]list.Item, 0, len(known))
	for _, s := range known {
		items = append(items, item{scope: s.scope, desc: s.desc})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select Scopes (Space to toggle, Enter to confirm)"
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle

	return Model{list: l}
}

// SelectedScopes returns the confirmed selection, nil when cancelled.
func (m Model) SelectedScopes() []string {
	return m.scopes
}

// Cancelled reports whether the user quit without confirming.
func (m Model) Cancelled() bool {
	return m.quitting
}
