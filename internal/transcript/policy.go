package transcript

import "time"

const (
	DefaultMinWordCount     = 10
	DefaultMinTimeSinceDump = 5 * time.Second
)

// DumpPolicy decides when the working buffer should be committed.
// Both thresholds must be met; equality counts as met.
type DumpPolicy struct {
	MinWordCount     int
	MinTimeSinceDump time.Duration
}

func DefaultDumpPolicy() DumpPolicy {
	return DumpPolicy{
		MinWordCount:     DefaultMinWordCount,
		MinTimeSinceDump: DefaultMinTimeSinceDump,
	}
}

// Eligible reports whether b should be dumped at now.
func (p DumpPolicy) Eligible(b *WorkingBuffer, now time.Time) bool {
	if b.FinalWordCount() < p.MinWordCount {
		return false
	}
	return now.Sub(b.LastDumpTime()) >= p.MinTimeSinceDump
}
