package session

import "fmt"

// MisuseError is returned when a session operation is called in the wrong state.
// The session state is unchanged.
type MisuseError struct {
	Op    string
	State string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("session %s: %s", e.Op, e.State)
}

var (
	ErrAlreadyActive = &MisuseError{Op: "start", State: "already active"}
	ErrNotActive     = &MisuseError{Op: "stop", State: "not active"}
)

const (
	SourceLocation = "location"
	SourceMotion   = "motion"
)

// StreamError wraps a failure reported by, or raised while handling, a stream.
type StreamError struct {
	Source string
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s stream: %v", e.Source, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
