package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for listing offsets or totals that are not multiples of the page size.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmptyInput is returned when aggregating zero records.
	ErrEmptyInput = errors.New("no records to aggregate")
	// ErrRunInProgress is returned when a crawl is requested while another one is running.
	ErrRunInProgress = errors.New("a crawl run is already in progress")
)

// TransientFetchError is a failure worth retrying: a timeout, a connection
// error, or a rate-limit/blocked status.
type TransientFetchError struct {
	Link       Link
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient fetch error for %s: %v", e.Link, e.Err)
	}
	return fmt.Sprintf("transient fetch error for %s: status %d", e.Link, e.StatusCode)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// TerminalFetchError ends the attempt sequence for a link.
type TerminalFetchError struct {
	Link       Link
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TerminalFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch failed for %s after %d attempt(s): %v", e.Link, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch failed for %s after %d attempt(s): status %d", e.Link, e.Attempts, e.StatusCode)
}

func (e *TerminalFetchError) Unwrap() error { return e.Err }
