package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// Resolver errors
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrVariantUnavailable  = errors.New("requested quality/format is not available")

	// Download task errors
	ErrTaskNotFound           = errors.New("download task not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrTransferFailure        = errors.New("transfer failed")
	ErrRegistryClosed         = errors.New("download registry is shut down")

	// File index errors, logged and never returned to callers
	ErrStorageFailure = errors.New("storage failure")
)

// TransferError describes a failed transfer attempt.
// It always unwraps to ErrTransferFailure.
type TransferError struct {
	StatusCode int
	Err        error
}

// Error returns the message recorded on the task
func (e *TransferError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("Download failed with status %d", e.StatusCode)
	}
	return ErrTransferFailure.Error()
}

// Unwrap returns the underlying errors
func (e *TransferError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransferFailure, e.Err}
	}
	return []error{ErrTransferFailure}
}

// NewTransferError creates a transfer error from a status code and cause
func NewTransferError(statusCode int, err error) *TransferError {
	return &TransferError{StatusCode: statusCode, Err: err}
}

// IsTransferFailure returns true if err is a transfer failure
func IsTransferFailure(err error) bool {
	return errors.Is(err, ErrTransferFailure)
}

// StorageError represents a soft file index failure.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

// Error returns the error message
func (e *StorageError) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying errors
func (e *StorageError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrStorageFailure, e.Err}
	}
	return []error{ErrStorageFailure}
}

// NewStorageError creates a new storage error
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{Op: op, Path: path, Err: err}
}
