package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
)

// ErrNotHolder is a Conflict: the key is borrowed, but not by the caller.
var ErrNotHolder = fmt.Errorf("%w: key is not held by caller", ErrConflict)

// Fault is a storage or infrastructure failure. No mutation was applied, so
// the caller may retry with backoff.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string { return fmt.Sprintf("%s: %v", f.Op, f.Err) }
func (f *Fault) Unwrap() error { return f.Err }

func NewFault(op string, err error) error { return &Fault{Op: op, Err: err} }

// IsFault reports whether err carries a Fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}
