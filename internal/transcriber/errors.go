package transcriber

import "errors"

var (
	ErrNotStarted     = errors.New("adapter not started")
	ErrAlreadyStarted = errors.New("adapter already started")
	ErrNoConnection   = errors.New("no connection")
)

// FatalTranscriptionError marks an error after which the result stream cannot
// continue; sources treat it as end of stream.
type FatalTranscriptionError struct {
	Err error
}

func (e *FatalTranscriptionError) Error() string {
	if e == nil || e.Err == nil {
		return "fatal transcription error"
	}
	return "fatal: " + e.Err.Error()
}

func (e *FatalTranscriptionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewFatalTranscriptionError(err error) error {
	if err == nil {
		return nil
	}
	return &FatalTranscriptionError{Err: err}
}

func IsFatalTranscriptionError(err error) bool {
	var fatal *FatalTranscriptionError
	return errors.As(err, &fatal)
}
