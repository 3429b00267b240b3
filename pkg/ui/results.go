package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"igavatar/pkg/instagram"
	"igavatar/pkg/resolver"
)

// RenderResults lays batch results out as an aligned table followed by a summary line
func RenderResults(items []resolver.BatchItem, meta resolver.BatchMeta) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		if item.OK() {
			rows = append(rows, []string{item.Username, "ok", item.URL})
			continue
		}
		rows = append(rows, []string{item.Username, strconv.Itoa(item.Status), item.Error})
	}

	var b strings.Builder
	b.WriteString(renderTable([]string{"USERNAME", "STATUS", "RESULT"}, rows, func(row []string) lipgloss.Style {
		if row[1] == "ok" {
			return successStyle
		}
		return errorStyle
	}))

	summary := fmt.Sprintf("%d total, %d resolved, %d failed in %dms",
		meta.Total, meta.Success, meta.Failed, meta.DurationMs)
	b.WriteString(render(dimStyle, summary))
	b.WriteString("\n")
	return b.String()
}

// RenderAttempts lays out the strategy attempts of a traced lookup
func RenderAttempts(attempts []instagram.Attempt) string {
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		detail := a.Reason
		if a.Outcome == instagram.OutcomeSuccess {
			detail = a.Field + " " + a.URL
		}
		rows = append(rows, []string{
			string(a.Strategy),
			a.Outcome.String(),
			strconv.Itoa(a.Status),
			a.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}

	return renderTable([]string{"STRATEGY", "OUTCOME", "STATUS", "TIME", "DETAIL"}, rows, func(row []string) lipgloss.Style {
		switch row[1] {
		case instagram.OutcomeSuccess.String():
			return successStyle
		case instagram.OutcomeNotFound.String():
			return errorStyle
		default:
			return warningStyle
		}
	})
}

// renderTable pads every column to its widest cell. The outcome style colours the second column.
func renderTable(headers []string, rows [][]string, outcome func(row []string) lipgloss.Style) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style func(col int) lipgloss.Style) {
		for i, cell := range cells {
			padded := cell
			if i < len(cells)-1 {
				padded += strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2)
			}
			b.WriteString(render(style(i), padded))
		}
		b.WriteString("\n")
	}

	writeRow(headers, func(int) lipgloss.Style { return labelStyle })
	for _, row := range rows {
		rowStyle := outcome(row)
		writeRow(row, func(col int) lipgloss.Style {
			if col == 1 {
				return rowStyle
			}
			return lipgloss.NewStyle()
		})
	}
	return b.String()
}
