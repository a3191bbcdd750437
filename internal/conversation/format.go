// ABOUTME: Display helpers for conversation lists: relative times, presence text, previews
// ABOUTME: Message bodies are rendered from Markdown with raw HTML stripped

package conversation

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"

	"github.com/2389/ubwiyunge/internal/store"
)

// PreviewLength is the number of characters shown for a last-message preview.
const PreviewLength = 50

// TimeAgo formats t relative to now in the compact form used by the
// conversation list. Anything a week or older is shown as a date.
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff/(24*time.Hour)))
	default:
		return t.Format("Jan 2, 2006")
	}
}

// LastSeen describes a contact's presence. A nil contact yields "".
func LastSeen(c *store.Contact, now time.Time) string {
	if c == nil {
		return ""
	}
	switch c.Status {
	case store.PresenceOnline:
		return "Online"
	case store.PresenceAway:
		return "Away"
	case store.PresenceBusy:
		return "Busy"
	}
	if c.LastSeen.IsZero() {
		return "Offline"
	}
	return "Last seen " + humanize.RelTime(c.LastSeen, now, "ago", "from now")
}

// Truncate shortens text to limit characters, appending "..." when cut.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// RenderContent converts a message body from Markdown to HTML. Raw HTML in
// the source is omitted.
func RenderContent(text string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("rendering content: %w", err)
	}
	return buf.String(), nil
}
