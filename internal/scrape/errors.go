package scrape

import "fmt"

// SessionCreationError reports that the solver could not allocate a session
// for a target, either because the create call failed in transport or
// because the solver answered with a non-ok status. It aborts only the
// current attempt, never the scheduling loop.
type SessionCreationError struct {
	TargetURL string
	Err       error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("create session for %s: %v", e.TargetURL, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

// SolveError reports a solve call the solver itself rejected (status other
// than "ok"). Transport failures are not SolveErrors; they surface as plain
// wrapped errors from the client.
type SolveError struct {
	Status  string
	Message string
}

func (e *SolveError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("solver returned status %q", e.Status)
	}
	return fmt.Sprintf("solver returned status %q: %s", e.Status, e.Message)
}
