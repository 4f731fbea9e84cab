package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/matheus3301/convo/internal/api"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(headers...).
		Rows(rows...)
	_, _ = fmt.Fprintln(w, t.Render())
}

func conversationRows(convs []api.ConversationSummary) [][]string {
	rows := make([][]string, 0, len(convs))
	for _, c := range convs {
		unread := "-"
		if c.UnreadCount > 0 {
			unread = strconv.Itoa(c.UnreadCount)
		}
		preview := c.Preview()
		if preview == "" {
			preview = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.OtherUser.Name,
			truncate(preview, 48),
			unread,
			formatTime(c.UpdatedAt),
		})
	}
	return rows
}

func messageRows(msgs []api.Message, isOutgoing func(api.Message) bool) [][]string {
	rows := make([][]string, 0, len(msgs))
	for _, m := range msgs {
		from, read := m.UserName, ""
		if isOutgoing(m) {
			from = "You"
			if m.Read {
				read = "✓✓"
			}
		}
		rows = append(rows, []string{
			strconv.FormatInt(m.ID, 10),
			from,
			formatTime(m.CreatedAt),
			m.Body,
			read,
		})
	}
	return rows
}

// messageLine is the one-line form used by watch.
func messageLine(m api.Message, outgoing bool) string {
	from := m.UserName
	if outgoing {
		from = "You"
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), from, m.Body)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
