// Package browse implements an interactive audit-record browser over the
// ops API: a table of recent events with a payload viewport for the
// selected record.
package browse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kmoray/trestle/internal/eventstore"
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	statusDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)
)

type recordsMsg []*eventstore.EventRecord
type errMsg error
type refreshMsg time.Time

// Model is the BubbleTea model for the event browser.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	records []*eventstore.EventRecord

	table    table.Model
	viewport viewport.Model

	lastError string
}

// New creates a browser pointed at an ops API base URL.
func New(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Received", Width: 19},
			{Title: "Source", Width: 10},
			{Title: "Type", Width: 28},
			{Title: "ID", Width: 10},
			{Title: "Callback", Width: 16},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		apiURL:   apiURL,
		apiKey:   apiKey,
		table:    t,
		viewport: viewport.New(80, 10),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchRecords(),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetchRecords()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(m.width - 6)
		m.viewport.Width = m.width - 6
		m.viewport.Height = m.height / 3

	case recordsMsg:
		m.records = msg
		m.lastError = ""
		m.updateTable()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg { return refreshMsg(t) })

	case refreshMsg:
		return m, m.fetchRecords()

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg { return refreshMsg(t) })
	}

	m.table, cmd = m.table.Update(msg)
	m.syncViewport()
	return m, cmd
}

func (m *Model) updateTable() {
	rows := make([]table.Row, 0, len(m.records))
	for _, rec := range m.records {
		rows = append(rows, table.Row{
			statusSymbol(rec.Status),
			rec.ReceivedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Source,
			rec.EventType,
			shortID(rec.ID),
			derefOr(rec.CallbackStatus, "-"),
		})
	}
	m.table.SetRows(rows)
	m.syncViewport()
}

func (m *Model) syncViewport() {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.records) {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(prettyPayload(m.records[idx]))
}

func statusSymbol(status string) string {
	switch status {
	case eventstore.StatusReceived:
		return statusDim.Render("○")
	case eventstore.StatusProcessing:
		return statusRunning.Render("◉")
	case eventstore.StatusProcessed:
		return statusOK.Render("●")
	case eventstore.StatusIgnored:
		return statusDim.Render("◌")
	case eventstore.StatusFailed:
		return statusFailed.Render("∅")
	default:
		return "?"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func prettyPayload(rec *eventstore.EventRecord) string {
	if len(rec.Payload) == 0 {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		return string(rec.Payload)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(rec.Payload)
	}
	return string(out)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading events..."
	}

	tableView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Audit Events"),
			m.table.View(),
		),
	)

	payloadView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Payload"),
			m.viewport.View(),
		),
	)

	var errBar string
	if m.lastError != "" {
		errBar = statusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Select • [r] Refresh")

	parts := []string{tableView, payloadView}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// --- Commands ---

func (m Model) fetchRecords() tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{Timeout: 5 * time.Second}
		req, err := http.NewRequest(http.MethodGet, m.apiURL+"/api/v1/events?limit=100", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("X-API-Key", m.apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return errMsg(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("events request returned %s", resp.Status))
		}

		var body struct {
			Events []*eventstore.EventRecord `json:"events"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return errMsg(err)
		}
		return recordsMsg(body.Events)
	}
}
