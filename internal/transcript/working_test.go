package transcript

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestWorkingBuffer_InterimReplaces(t *testing.T) {
	b := NewWorkingBuffer(t0)

	b.Apply("hel", false, t0)
	b.Apply("hello", false, t0)
	b.Apply("hello wor", false, t0)

	if got := b.Text(); got != "hello wor" {
		t.Errorf("Text() = %q, want %q", got, "hello wor")
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
	if got := b.FinalWordCount(); got != 0 {
		t.Errorf("FinalWordCount() = %d, want 0 for interim-only buffer", got)
	}
}

func TestWorkingBuffer_FinalClosesSlot(t *testing.T) {
	b := NewWorkingBuffer(t0)

	b.Apply("hello", false, t0)
	b.Apply("hello world", false, t0)
	b.Apply("hello world", true, t0)

	if got := b.Text(); got != "hello world" {
		t.Errorf("Text() = %q, want %q", got, "hello world")
	}
	if got := b.FinalWordCount(); got != 2 {
		t.Errorf("FinalWordCount() = %d, want 2", got)
	}

	// next interim opens a new slot instead of overwriting the final one
	b.Apply("how", false, t0)
	b.Apply("how are", false, t0)
	if got := b.Text(); got != "hello world how are" {
		t.Errorf("Text() = %q, want %q", got, "hello world how are")
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
	if got := b.FinalWordCount(); got != 2 {
		t.Errorf("FinalWordCount() = %d, want 2 (interim excluded)", got)
	}

	b.Apply("how are you", true, t0)
	if got := b.FinalWordCount(); got != 5 {
		t.Errorf("FinalWordCount() = %d, want 5", got)
	}
}

func TestWorkingBuffer_ConsecutiveFinalsAppend(t *testing.T) {
	b := NewWorkingBuffer(t0)

	finals := []string{"one", "two three", "four five six"}
	prev := 0
	for _, f := range finals {
		b.Apply(f, true, t0)
		got := b.FinalWordCount()
		if got < prev {
			t.Fatalf("FinalWordCount decreased from %d to %d", prev, got)
		}
		prev = got
	}

	if got := b.Text(); got != "one two three four five six" {
		t.Errorf("Text() = %q", got)
	}
	if prev != 6 {
		t.Errorf("FinalWordCount() = %d, want 6", prev)
	}
}

func TestWorkingBuffer_EmptyText(t *testing.T) {
	b := NewWorkingBuffer(t0)

	b.Apply("", false, t0)
	if got := b.Text(); got != "" {
		t.Errorf("Text() = %q, want empty", got)
	}

	b.Apply("partial words", false, t0)
	b.Apply("", false, t0)
	if got := b.Text(); got != "" {
		t.Errorf("Text() after empty interim = %q, want empty", got)
	}

	b.Apply("kept", true, t0)
	b.Apply("", true, t0)
	if got := b.Text(); got != "kept" {
		t.Errorf("Text() = %q, want %q", got, "kept")
	}
	if got := b.FinalWordCount(); got != 1 {
		t.Errorf("FinalWordCount() = %d, want 1", got)
	}
}

func TestWorkingBuffer_Drain(t *testing.T) {
	b := NewWorkingBuffer(t0)
	b.Apply("first sentence", true, t0)
	b.Apply("second", false, t0)

	later := t0.Add(7 * time.Second)
	text := b.Drain(later)

	if text != "first sentence second" {
		t.Errorf("Drain() = %q", text)
	}
	if got := b.Text(); got != "" {
		t.Errorf("Text() after drain = %q, want empty", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len() after drain = %d", b.Len())
	}
	if got := b.FinalWordCount(); got != 0 {
		t.Errorf("FinalWordCount() after drain = %d", got)
	}
	if !b.LastDumpTime().Equal(later) {
		t.Errorf("LastDumpTime() = %v, want %v", b.LastDumpTime(), later)
	}

	// drained interim slot is closed too
	b.Apply("fresh", false, later)
	if got := b.Text(); got != "fresh" {
		t.Errorf("Text() = %q, want %q", got, "fresh")
	}
}

func TestWorkingBuffer_ClearKeepsDumpTime(t *testing.T) {
	b := NewWorkingBuffer(t0)
	b.Apply("something", true, t0)
	b.Clear()

	if got := b.Text(); got != "" {
		t.Errorf("Text() after clear = %q", got)
	}
	if !b.LastDumpTime().Equal(t0) {
		t.Errorf("Clear() changed LastDumpTime to %v", b.LastDumpTime())
	}
}

func TestWorkingBuffer_TextIsStable(t *testing.T) {
	b := NewWorkingBuffer(t0)
	b.Apply("alpha beta", true, t0)
	b.Apply("gamma", false, t0)

	if first, second := b.Text(), b.Text(); first != second {
		t.Errorf("Text() not idempotent: %q vs %q", first, second)
	}
}

func TestWorkingBuffer_SegmentsCopy(t *testing.T) {
	b := NewWorkingBuffer(t0)
	b.Apply("one", true, t0)

	segs := b.Segments()
	segs[0].Text = "changed"

	if got := b.Text(); got != "one" {
		t.Errorf("Segments() leaked internal state, Text() = %q", got)
	}
}
