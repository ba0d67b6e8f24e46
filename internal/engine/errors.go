package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidState is matched by every lifecycle misuse error.
var ErrInvalidState = errors.New("invalid engine state")

// InvalidStateError reports an operation attempted in the wrong lifecycle state.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	if e == nil {
		return ErrInvalidState.Error()
	}
	return fmt.Sprintf("%s: engine is %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

func IsInvalidState(err error) bool {
	var invalid *InvalidStateError
	return errors.As(err, &invalid)
}
