package watch

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kmoray/trestle/internal/events"
	"github.com/kmoray/trestle/internal/token"
)

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	// State
	health      HealthState
	tokens      []token.Status
	tallies     map[string]*sourceTally
	eventLog    []events.Event
	lastEventID int64

	// Live indicators
	ticker  Ticker
	spinner Spinner

	theme Theme

	// Communication
	streamEvents chan events.Event

	// Error display
	lastError string
}

// New creates a watch TUI model pointed at an ops API base URL.
func New(apiURL, apiKey string) *Model {
	return &Model{
		apiURL:       apiURL,
		apiKey:       apiKey,
		tallies:      make(map[string]*sourceTally),
		eventLog:     make([]events.Event, 0),
		streamEvents: make(chan events.Event, 100),
		ticker:       NewTicker(),
		spinner:      NewSpinner(),
		theme:        NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToStream(m.apiURL, m.apiKey, 0, m.streamEvents),
		receiveNextEvent(m.streamEvents),
		func() tea.Msg { return fetchHealth(m.apiURL) },
		func() tea.Msg { return fetchTokenStatus(m.apiURL, m.apiKey) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "t":
			// Force a token status poll.
			return m, func() tea.Msg { return fetchTokenStatus(m.apiURL, m.apiKey) }
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.ticker.Tick()
		m.spinner.Decay()
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		if e.ID > m.lastEventID {
			m.lastEventID = e.ID
		}

		// Event log is newest first.
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > 50 {
			m.eventLog = m.eventLog[:50]
		}

		m.spinner.OnEvent()
		updateTallies(m.tallies, e)

		m.health.Connected = true
		m.lastError = ""

		return m, receiveNextEvent(m.streamEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""

		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})

	case tokenStatusMsg:
		m.tokens = msg
		return m, tea.Tick(15*time.Second, func(t time.Time) tea.Msg {
			return fetchTokenStatus(m.apiURL, m.apiKey)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "stream disconnected, reconnecting..."
		// Reconnect after a short delay; the existing receiveNextEvent
		// goroutine is still waiting on the channel and will pick up
		// events from the new subscription.
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToStream(m.apiURL, m.apiKey, m.lastEventID, m.streamEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to trestle..."
	}

	header := renderHeader(m.health, m.ticker, m.spinner, m.theme, m.width)
	tokens := renderTokens(m.tokens, m.theme, m.width)
	sources := renderSources(m.tallies, m.theme, m.width)
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [t] Refresh token status")

	parts := []string{header, tokens, sources, eventStream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
