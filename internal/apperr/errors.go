// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer. Every type wraps its cause and is matched with errors.As.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
	Err    error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found with ID: %s", e.Entity, e.ID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func NotFound(entity, id string, err error) error {
	return &NotFoundError{Entity: entity, ID: id, Err: err}
}

// StockFailure is one product decrement that did not apply.
type StockFailure struct {
	ProductID string
	Quantity  int
	Err       error
}

// StockUpdateError aggregates every failed decrement of a fulfillment batch.
type StockUpdateError struct {
	Failures []StockFailure
}

func (e *StockUpdateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("product %s (quantity %d): %v", f.ProductID, f.Quantity, f.Err))
	}
	return "stock update failed: " + strings.Join(parts, "; ")
}

func (e *StockUpdateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// StatusWriteError means stock reconciliation succeeded but persisting the
// new status did not.
type StatusWriteError struct {
	OrderID string
	Err     error
}

func (e *StatusWriteError) Error() string {
	return fmt.Sprintf("status update failed for order %s: %v", e.OrderID, e.Err)
}

func (e *StatusWriteError) Unwrap() error { return e.Err }

// InvalidBackupError reports a malformed or incomplete backup document.
type InvalidBackupError struct {
	Reason string
	Err    error
}

func (e *InvalidBackupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid backup: %s: %v", e.Reason, e.Err)
	}
	return "invalid backup: " + e.Reason
}

func (e *InvalidBackupError) Unwrap() error { return e.Err }

// UploadError reports a failed object storage operation.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
