// Package report renders crawl outcomes as aligned text tables for the
// CLI.
package report

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"propcrawl/internal/models"
)

// RenderResults renders one table row per session result.
func RenderResults(results []models.SessionResult) string {
	rows := [][]string{
		{"Source", "Session", "Status", "Pages", "New", "Updated", "Errors"},
	}

	for _, r := range results {
		rows = append(rows, []string{
			r.SourceName,
			fmt.Sprintf("%d", r.SessionID),
			string(r.Status),
			fmt.Sprintf("%d", r.TotalPages),
			fmt.Sprintf("%d", r.NewCount),
			fmt.Sprintf("%d", r.UpdatedCount),
			fmt.Sprintf("%d", r.ErrorCount),
		})
	}

	return renderTable(rows)
}

// RenderSessions renders stored sessions, newest first as given.
func RenderSessions(sessions []models.CrawlSession) string {
	rows := [][]string{
		{"ID", "Source", "Started", "Status", "Listings", "New", "Updated", "Errors"},
	}

	for _, s := range sessions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.ID),
			s.SourceName,
			s.StartedAt.Format("2006-01-02 15:04"),
			string(s.Status),
			fmt.Sprintf("%d", s.TotalListings),
			fmt.Sprintf("%d", s.NewCount),
			fmt.Sprintf("%d", s.UpdatedCount),
			fmt.Sprintf("%d", s.ErrorCount),
		})
	}

	return renderTable(rows)
}

// renderTable pads every cell to its column's display width. Widths are
// measured with runewidth so wide characters keep columns aligned.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(rows[0]))

	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder

	writeRow := func(row []string) {
		b.WriteString("|")

		for i, cell := range row {
			b.WriteString(" ")
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString(" |")
		}

		b.WriteString("\n")
	}

	writeRow(rows[0])

	b.WriteString("|")

	for _, w := range widths {
		b.WriteString(" ")
		b.WriteString(strings.Repeat("-", w))
		b.WriteString(" |")
	}

	b.WriteString("\n")

	for _, row := range rows[1:] {
		writeRow(row)
	}

	return b.String()
}
