package transcript

// LongTermBuffer is the append-only ledger of committed chunks.
type LongTermBuffer struct {
	chunks []string
}

func NewLongTermBuffer() *LongTermBuffer {
	return &LongTermBuffer{}
}

// Append adds a committed chunk. Empty chunks are ignored.
func (b *LongTermBuffer) Append(chunk string) {
	if chunk == "" {
		return
	}
	b.chunks = append(b.chunks, chunk)
}

// Text returns the chunks joined by a single space.
func (b *LongTermBuffer) Text() string {
	return joinNonEmpty(b.chunks)
}

// Chunks returns a copy of the committed chunks in commit order.
func (b *LongTermBuffer) Chunks() []string {
	out := make([]string, len(b.chunks))
	copy(out, b.chunks)
	return out
}

func (b *LongTermBuffer) Len() int {
	return len(b.chunks)
}

func (b *LongTermBuffer) Clear() {
	b.chunks = nil
}
