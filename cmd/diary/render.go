package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pbaille/diary/internal/domain"
)

// styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1"))
	sepStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	metaStyle    = lipgloss.NewStyle().Faint(true)
	emotionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9E2AF"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA"))
)

func termWidth() int {
	w := 100
	if v, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && v > 40 {
		w = v
	}
	return min(w, 120)
}

func separator() string {
	return sepStyle.Render(strings.Repeat("─", termWidth()))
}

func emotionLine(e domain.Entry) string {
	if !e.Classified() {
		return metaStyle.Render("no emotion")
	}
	line := emotionStyle.Render(e.PrimaryEmotion.Glyph() + " " + e.PrimaryEmotion.String())
	if len(e.SecondaryEmotions) > 0 {
		var rest []string
		for _, em := range e.SecondaryEmotions {
			rest = append(rest, em.Glyph()+" "+em.String())
		}
		line += "  " + metaStyle.Render("also: "+strings.Join(rest, ", "))
	}
	return line
}

// renderEntry prints one entry; full includes its key for show/delete
func renderEntry(e domain.Entry, full bool) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Entry for " + e.Timestamp.Local().Format("Jan 2, 2006 at 15:04:05")))
	sb.WriteString("\n")
	if full {
		sb.WriteString(metaStyle.Render("key: ") + keyStyle.Render(e.Timestamp.UTC().Format(time.RFC3339Nano)))
		sb.WriteString("\n")
	}
	sb.WriteString(emotionLine(e))
	sb.WriteString("\n\n")
	sb.WriteString(e.Text)
	return sb.String()
}

func renderList(entries []domain.Entry, limit int) string {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	var sb strings.Builder
	sb.WriteString(separator() + "\n")
	for _, e := range entries {
		glyph := e.PrimaryEmotion.Glyph()
		if glyph == "" {
			glyph = "  "
		}
		fmt.Fprintf(&sb, "%s  %s  %s\n",
			keyStyle.Render(e.Timestamp.UTC().Format(time.RFC3339Nano)),
			glyph,
			truncate(e.Text, 60),
		)
	}
	sb.WriteString(separator() + "\n")
	return sb.String()
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
