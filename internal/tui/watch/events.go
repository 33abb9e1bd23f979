package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kmoray/trestle/internal/events"
)

// sourceTally accumulates per-source outcome counts from the stream.
type sourceTally struct {
	Received  int
	Processed int
	Ignored   int
	Failed    int
}

func updateTallies(tallies map[string]*sourceTally, e events.Event) {
	var data struct {
		Source string `json:"source"`
	}
	_ = json.Unmarshal(e.Data, &data)
	if data.Source == "" {
		return
	}

	tally, ok := tallies[data.Source]
	if !ok {
		tally = &sourceTally{}
		tallies[data.Source] = tally
	}

	switch e.Type {
	case events.TypeEventReceived:
		tally.Received++
	case events.TypeEventProcessed:
		tally.Processed++
	case events.TypeEventIgnored:
		tally.Ignored++
	case events.TypeEventFailed:
		tally.Failed++
	}
}

func renderSources(tallies map[string]*sourceTally, theme Theme, width int) string {
	innerWidth := width - 4

	if len(tallies) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("SOURCES"),
			theme.Dim.Render("  No webhooks yet"),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	names := make([]string, 0, len(tallies))
	for name := range tallies {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		t := tallies[name]
		lines = append(lines, fmt.Sprintf("%s %s %s %s %s",
			theme.Header.Render(fmt.Sprintf("%-12s", name)),
			theme.Dim.Render(fmt.Sprintf("in:%d", t.Received)),
			theme.StatusOK.Render(fmt.Sprintf("ok:%d", t.Processed)),
			theme.StatusIgnored.Render(fmt.Sprintf("ign:%d", t.Ignored)),
			theme.StatusFailed.Render(fmt.Sprintf("fail:%d", t.Failed)),
		))
	}

	body := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("SOURCES"),
		body,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 10 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case events.TypeEventProcessed:
		typeStyle = theme.StatusOK
	case events.TypeEventFailed:
		typeStyle = theme.StatusFailed
	case events.TypeEventReceived:
		typeStyle = theme.StatusRunning
	case events.TypeTokenRefreshed, events.TypeCleanupRun:
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.Dim
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-16s", e.Type))
	desc := extractEventDesc(e)

	return fmt.Sprintf("%s %s %s", ts, typeName, desc)
}

func extractEventDesc(e events.Event) string {
	var data events.RecordData
	_ = json.Unmarshal(e.Data, &data)

	var parts []string

	if data.EventID != "" {
		id := data.EventID
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, fmt.Sprintf("[%s]", id))
	}
	if data.Source != "" {
		parts = append(parts, data.Source)
	}
	if data.EventType != "" {
		parts = append(parts, data.EventType)
	}
	if data.CorrelationID != "" {
		parts = append(parts, "corr="+data.CorrelationID)
	}
	if data.Error != "" {
		msg := data.Error
		if len(msg) > 40 {
			msg = msg[:40] + "..."
		}
		parts = append(parts, msg)
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}

	return strings.Join(parts, " ")
}
