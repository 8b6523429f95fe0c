package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mg2dsn/internal/bounce"
	"github.com/nhle/mg2dsn/internal/theme"
)

type summaryRow struct {
	label string
	value int
	good  *bool
}

func boolPtr(b bool) *bool { return &b }

// summary renders the end-of-run counters as a bordered table.
func summary(s bounce.Stats, dryRun bool) string {
	rows := []summaryRow{
		{label: "pages", value: s.Pages},
		{label: "events scanned", value: s.Scanned},
		{label: "bounce candidates", value: s.Candidates},
		{label: "reports sent", value: s.Sent, good: boolPtr(true)},
		{label: "send failures", value: s.SendFailures, good: boolPtr(false)},
		{label: "insufficient context", value: s.Insufficient},
		{label: "no suppression", value: s.NoSuppression},
		{label: "already notified", value: s.AlreadyNotified},
		{label: "suppressions cleared", value: s.Cleared},
		{label: "suppressions kept", value: s.Kept},
	}
	if dryRun {
		rows = append(rows, summaryRow{label: "suppressions held back", value: s.WouldClear})
	}

	width := 0
	for _, r := range rows {
		if len(r.label) > width {
			width = len(r.label)
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if dryRun {
		lines = append(lines, theme.KeyStyle.Render("dry run: nothing was sent or deleted"))
	}
	for _, r := range rows {
		value := fmt.Sprintf("%d", r.value)
		if r.good != nil && r.value > 0 {
			value = theme.OutcomeStyle(*r.good).Render(value)
		}
		label := theme.KeyStyle.Render(r.label + strings.Repeat(" ", width-len(r.label)))
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, label, "  ", value))
	}

	return theme.SummaryStyle.Render(strings.Join(lines, "\n"))
}
