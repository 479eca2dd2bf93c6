package common

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect is returned when the log stream cannot be opened. It is fatal.
	ErrConnect = errors.New("stream connect failed")
	// ErrTransport ends the message sequence after a mid-stream failure.
	ErrTransport = errors.New("stream transport error")

	ErrFreshnessUnavailable = errors.New("recent blockhash unavailable")
	ErrRejectedOrTimedOut   = errors.New("transaction rejected or timed out")

	// ErrSubscriptionAck marks the reply to our own logsSubscribe request.
	ErrSubscriptionAck = errors.New("subscription acknowledgement")
)

const maxRawInError = 120

// ParseError reports a frame that could not be turned into a LogRecord.
type ParseError struct {
	Raw string
	Err error
}

func newParseError(raw []byte, err error) *ParseError {
	s := string(raw)
	if len(s) > maxRawInError {
		s = s[:maxRawInError] + "..."
	}
	return &ParseError{Raw: s, Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse transaction log %q: %v", e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
