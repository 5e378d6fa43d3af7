package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled marks a turn the user stopped. It is never reported as a failure.
	ErrCancelled = errors.New("generation cancelled")
	// ErrNotRetryable is returned by Retry for anything but a paused turn.
	ErrNotRetryable = errors.New("message is not retryable")
	// ErrBusy is returned by Retry while another turn is streaming.
	ErrBusy = errors.New("a response is already streaming")
)

// TransportError wraps a failure talking to the inference backend.
type TransportError struct {
	Status int // HTTP status, 0 when the request never completed
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("inference transport (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("inference transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
