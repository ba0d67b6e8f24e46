package transcriber

import "context"

// TranscriptionResult is a single result from a streaming adapter.
type TranscriptionResult struct {
	Text    string // transcription text for the current utterance (interim or final)
	IsFinal bool   // true once the recognizer will no longer revise Text
	Error   error  // non-nil if an error occurred
}

// StreamingAdapter is the contract of a streaming recognition backend:
// audio goes in through SendChunk, interim and final results come out of Results.
type StreamingAdapter interface {
	// Start opens the streaming session.
	Start(ctx context.Context) error

	// SendChunk sends a chunk of raw PCM audio.
	SendChunk(audio []byte) error

	// Results returns the channel of results. It is closed when the adapter stops.
	Results() <-chan TranscriptionResult

	// Finalize signals end of audio and waits, bounded by ctx, for the last final result.
	Finalize(ctx context.Context) error

	// Close tears the session down.
	Close() error
}
