package session

import (
	"errors"
)

// Fallback messages shown when the Test Service gives no reason.
const (
	DefaultStartMessage  = "Failed to start test. Please try again."
	DefaultSubmitMessage = "Failed to submit test. Please try again."
)

var (
	// ErrDiscarded is returned by operations on a closed session.
	ErrDiscarded = errors.New("session discarded")
	// ErrNoQuestions rejects tests that cannot hold a cursor.
	ErrNoQuestions = errors.New("test has no questions")
)

// StartError means the session could not be created. It is terminal: the
// caller should offer navigation away.
type StartError struct {
	TestID string
	// Message is safe to show to the student.
	Message string
	Err     error
}

func (e *StartError) Error() string { return e.Message }

func (e *StartError) Unwrap() error { return e.Err }

// SubmitError means the Test Service did not accept the answers. It is
// recoverable: the caller may retry with another Submit.
type SubmitError struct {
	AttemptID string
	Trigger   Trigger
	// Message is safe to show to the student.
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }

func (e *SubmitError) Unwrap() error { return e.Err }

// serverMessager is implemented by transport errors that carry a
// server-provided explanation.
type serverMessager interface {
	ServerMessage() string
}

func userMessage(err error, fallback string) string {
	var sm serverMessager
	if errors.As(err, &sm) {
		if msg := sm.ServerMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
