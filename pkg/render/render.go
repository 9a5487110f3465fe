// Package render formats songs stored by the app server for terminal display.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/umputun/tunecheck/pkg/song"
)

// Markdown renders markdown content for terminal display.
// If noColor is true, returns the content unchanged.
func Markdown(content string, noColor bool) (string, error) {
	if noColor {
		return content, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}

	result, err := renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return result, nil
}

// Summary returns a markdown overview of songs: totals followed by a table with one row per song.
func Summary(songs []song.Song) string {
	var b strings.Builder
	b.WriteString("# Songs\n\n")

	albums := make(map[string]struct{})
	var length float64
	var plays int
	for _, s := range songs {
		albums[s.Artist+"\x00"+s.Album] = struct{}{}
		length += s.Length
		plays += len(s.Plays)
	}
	fmt.Fprintf(&b, "- **Songs:** %d\n", len(songs))
	fmt.Fprintf(&b, "- **Albums:** %d\n", len(albums))
	fmt.Fprintf(&b, "- **Duration:** %s\n", formatLength(length))
	fmt.Fprintf(&b, "- **Plays:** %d\n", plays)

	if len(songs) == 0 {
		return b.String()
	}

	b.WriteString("\n| Artist | Title | Album | Track | Length | Rating | Tags | Plays |\n")
	b.WriteString("|---|---|---|---:|---:|---|---|---:|\n")
	for _, s := range songs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %d |\n",
			cell(s.Artist), cell(s.Title), cell(s.Album), track(s), formatLength(s.Length),
			Stars(s.Rating), cell(strings.Join(s.Tags, " ")), len(s.Plays))
	}
	return b.String()
}

// Stars formats a 1-5 rating the way the player shows it, "-" if unrated.
func Stars(rating int) string {
	if rating <= 0 {
		return "-"
	}
	return strings.Repeat("★", min(rating, 5))
}

func track(s song.Song) string {
	switch {
	case s.Track == 0:
		return ""
	case s.Disc > 1:
		return fmt.Sprintf("%d-%d", s.Disc, s.Track)
	default:
		return fmt.Sprintf("%d", s.Track)
	}
}

// formatLength formats seconds as h:mm:ss or m:ss.
func formatLength(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// cell escapes table separators and drops newlines.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
