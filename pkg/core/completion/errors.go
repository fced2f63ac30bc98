package completion

import "fmt"

// StreamError reports a failed or aborted completion stream. The caller
// decides how to surface it; the client never retries internally.
type StreamError struct {
	Status  int // HTTP status, 0 for transport/stream failures
	Message string
	cause   error
}

func (e *StreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion stream failed (status %d): %s", e.Status, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("completion stream failed: %s: %v", e.Message, e.cause)
	}
	return "completion stream failed: " + e.Message
}

func (e *StreamError) Unwrap() error { return e.cause }
