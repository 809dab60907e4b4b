package news

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by stores and the collection pipeline.
var (
	ErrKeywordNotFound = errors.New("keyword not found")
	ErrKeywordExists   = errors.New("keyword already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrCursorConflict  = errors.New("keyword cursor changed concurrently")
	ErrKeywordInFlight = errors.New("keyword collection already in flight")
)

// PlatformFetchError wraps a failure of a single platform fetch, including
// timeouts and recovered panics.
type PlatformFetchError struct {
	Platform Platform
	Err      error
}

func (e *PlatformFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Platform, e.Err)
}

func (e *PlatformFetchError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed store operation inside a collection cycle.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
