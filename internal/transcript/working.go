package transcript

import "time"

// WorkingBuffer accumulates the current, not yet committed utterance window.
//
// Interim results overwrite the open trailing slot; a final result closes the
// slot so the next result starts a fresh one. WorkingBuffer is not safe for
// concurrent use, callers serialize access.
type WorkingBuffer struct {
	segments     []Segment
	open         bool // trailing segment is an interim slot that may still be replaced
	lastDumpTime time.Time
}

func NewWorkingBuffer(now time.Time) *WorkingBuffer {
	return &WorkingBuffer{lastDumpTime: now}
}

// Apply records a recognition result received at the given time.
func (b *WorkingBuffer) Apply(text string, isFinal bool, at time.Time) {
	if b.open && len(b.segments) > 0 {
		last := len(b.segments) - 1
		b.segments[last] = b.segments[last].WithText(text, isFinal)
	} else {
		b.segments = append(b.segments, NewSegment(text, isFinal, at))
	}
	b.open = !isFinal
}

// Text returns all segment texts in order, space-joined and trimmed.
func (b *WorkingBuffer) Text() string {
	if len(b.segments) == 0 {
		return ""
	}
	parts := make([]string, len(b.segments))
	for i, s := range b.segments {
		parts[i] = s.Text
	}
	return joinNonEmpty(parts)
}

// FinalWordCount sums the word counts of final segments only.
func (b *WorkingBuffer) FinalWordCount() int {
	total := 0
	for _, s := range b.segments {
		if s.IsFinal {
			total += s.WordCount
		}
	}
	return total
}

// Segments returns a copy of the held segments.
func (b *WorkingBuffer) Segments() []Segment {
	out := make([]Segment, len(b.segments))
	copy(out, b.segments)
	return out
}

func (b *WorkingBuffer) Len() int {
	return len(b.segments)
}

func (b *WorkingBuffer) LastDumpTime() time.Time {
	return b.lastDumpTime
}

// ResetDumpTime moves the dump reference point to now.
func (b *WorkingBuffer) ResetDumpTime(now time.Time) {
	b.lastDumpTime = now
}

// Drain removes every segment and returns their aggregate text as it was
// before the call. The dump reference point is moved to now.
func (b *WorkingBuffer) Drain(now time.Time) string {
	text := b.Text()
	b.segments = nil
	b.open = false
	b.lastDumpTime = now
	return text
}

// Clear drops all segments without reporting them.
func (b *WorkingBuffer) Clear() {
	b.segments = nil
	b.open = false
}
