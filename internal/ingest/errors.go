package ingest

import "fmt"

// AuthError is a non-retryable credential failure; the connect loop stops
// when it sees one.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("feed authentication rejected (status %d)", e.Status)
}

// ConnError is a retryable transport failure.
type ConnError struct {
	Attempt int
	Err     error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("feed connection failed (attempt %d): %v", e.Attempt, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }
