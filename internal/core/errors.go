package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange     = errors.New("invalid date range")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidStatus    = errors.New("invalid grant status")
	ErrEmptyName        = errors.New("empty name")
	ErrNoMonths         = errors.New("no months to distribute over")
	ErrNotFound         = errors.New("not found")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrDependencyExists = errors.New("dependent rows exist")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError rejects input before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StoreError wraps a connection or transaction failure from the backing store.
// It matches ErrStoreUnavailable with errors.Is; the driver error stays reachable through Unwrap.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
