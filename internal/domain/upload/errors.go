package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks a malformed request: no file, bad key or folder, bad
	// options.
	ErrInput = errors.New("invalid input")
	// ErrNotFound is matched by a StoreError whose backend reported a missing
	// key.
	ErrNotFound = errors.New("object not found")
	// ErrNotImplemented marks the stubbed operations.
	ErrNotImplemented = errors.New("not implemented")
)

// InputError wraps ErrInput with a client-facing message.
func InputError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

type ValidationRule string

const (
	RuleContentType ValidationRule = "content_type"
	RuleMaxSize     ValidationRule = "max_size"
)

// ValidationError is a profile rule violation. It is raised before any remote
// call is made.
type ValidationError struct {
	Profile string
	Rule    ValidationRule
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StoreError carries the storage backend's own failure text.
type StoreError struct {
	Op       string
	Key      string
	Message  string
	NotFound bool
	Err      error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Key, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrNotFound && e.NotFound }
