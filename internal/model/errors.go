package model

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or inconsistent event payload.
type ValidationError struct {
	Event  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validate %s: %s", e.Event, e.Reason)
	}
	return fmt.Sprintf("validate %s.%s: %s", e.Event, e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for an event field.
func NewValidationError(event, field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Event: event, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// FetchError reports that every payload source was exhausted for a URI.
type FetchError struct {
	URI string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TreeError reports a payload that is not a valid Merkle tree.
type TreeError struct {
	URI string
	Err error
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("invalid merkle tree %q: %v", e.URI, e.Err)
}

func (e *TreeError) Unwrap() error { return e.Err }

// StorageError reports a write rejected by the store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// WrapStorage wraps err as a StorageError unless it is nil or already one.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
