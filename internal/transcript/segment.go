package transcript

import (
	"strings"
	"time"
)

// Segment is a single piece of recognized text held by the working buffer.
type Segment struct {
	Text       string
	IsFinal    bool
	WordCount  int
	ReceivedAt time.Time
}

// NewSegment builds a segment and derives its word count from text.
func NewSegment(text string, isFinal bool, receivedAt time.Time) Segment {
	return Segment{
		Text:       text,
		IsFinal:    isFinal,
		WordCount:  CountWords(text),
		ReceivedAt: receivedAt,
	}
}

// WithText returns a copy of s carrying newText, with the word count recomputed.
func (s Segment) WithText(newText string, isFinal bool) Segment {
	s.Text = newText
	s.IsFinal = isFinal
	s.WordCount = CountWords(newText)
	return s
}

// CountWords returns the number of whitespace separated tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// joinNonEmpty joins the trimmed, non-empty parts with a single space.
func joinNonEmpty(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
