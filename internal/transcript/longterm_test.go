package transcript

import "testing"

func TestLongTermBuffer(t *testing.T) {
	b := NewLongTermBuffer()
	if got := b.Text(); got != "" {
		t.Errorf("empty Text() = %q", got)
	}

	b.Append("first chunk")
	b.Append("")
	b.Append("second chunk")

	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (empty chunk ignored)", b.Len())
	}
	if got := b.Text(); got != "first chunk second chunk" {
		t.Errorf("Text() = %q", got)
	}

	chunks := b.Chunks()
	chunks[0] = "mutated"
	if b.Chunks()[0] != "first chunk" {
		t.Error("Chunks() should return a copy")
	}

	b.Clear()
	if b.Len() != 0 || b.Text() != "" {
		t.Errorf("Clear() left %d chunks, text %q", b.Len(), b.Text())
	}
}
