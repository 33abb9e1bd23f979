package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kmoray/trestle/internal/token"
)

// renderTokens shows the provider token cache panel from /api/v1/token/status.
func renderTokens(statuses []token.Status, theme Theme, width int) string {
	innerWidth := width - 4

	if len(statuses) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("TOKEN PROVIDERS"),
			theme.Dim.Render("  No providers configured"),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for _, st := range statuses {
		lines = append(lines, formatTokenStatus(st, theme))
	}

	body := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("TOKEN PROVIDERS"),
		body,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatTokenStatus(st token.Status, theme Theme) string {
	name := theme.Header.Render(fmt.Sprintf("%-12s", st.Provider))
	method := theme.Dim.Render(fmt.Sprintf("%-6s", st.Method))

	var state string
	switch {
	case st.KeyError != "":
		state = theme.StatusFailed.Render("KEY ERROR")
	case st.Cached && st.Valid:
		state = theme.StatusOK.Render("CACHED")
	case st.Cached:
		state = theme.StatusRunning.Render("EXPIRED")
	default:
		state = theme.StatusIgnored.Render("COLD")
	}

	expiry := ""
	if st.ExpiresAt != nil {
		remaining := time.Until(*st.ExpiresAt).Round(time.Second)
		if remaining > 0 {
			expiry = theme.Dim.Render(fmt.Sprintf("expires in %s", remaining))
		} else {
			expiry = theme.Dim.Render("expired")
		}
	}

	return fmt.Sprintf("%s %s %-18s %s", name, method, state, expiry)
}
