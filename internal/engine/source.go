package engine

import "context"

// Result is a single recognition result delivered by a Source.
type Result struct {
	Text    string // recognized text for the current utterance slot
	IsFinal bool   // true once the recognizer considers the text stable
	Err     error  // non-fatal transport error; the result carries no text
}

// Source produces recognition results for an Engine.
type Source interface {
	// Start begins producing results. The returned channel is closed when the
	// stream ends, either on its own or after Stop.
	Start(ctx context.Context) (<-chan Result, error)

	// Stop asks the source to terminate. It must be safe to call after the
	// stream has already ended.
	Stop() error
}
