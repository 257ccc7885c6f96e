package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error codes surfaced to API clients. Workflow and controller layers map
// these onto HTTP statuses; everything else is a 500.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyPosted     = "ALREADY_POSTED"
	ErrCodeAlreadyReversed   = "ALREADY_REVERSED"
	ErrCodeDuplicateCode     = "DUPLICATE_CODE"
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
	ErrCodeBomNotFound       = "BOM_NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyPosted   = errors.New("reference already posted")
	ErrAlreadyReversed = errors.New("posting already reversed")
	ErrDuplicateCode   = errors.New("code already exists")
	// ErrConflict wraps a serialization failure that survived its retry.
	// Clients should back off and resubmit.
	ErrConflict = errors.New("concurrent update conflict")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field string, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError carries enough detail for the client to show which
// item at which location fell short, and by how much.
type InsufficientStockError struct {
	ItemCode     string
	LocationCode LocationCode
	Requested    decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s at %s: requested %s, available %s",
		e.ItemCode, e.LocationCode, e.Requested.String(), e.Available.String())
}

// UnresolvableBomError is returned when an item code cannot be mapped to a
// BOM table, or maps to a table with no matching released version.
type UnresolvableBomError struct {
	ItemCode string
	Reason   string
}

func (e *UnresolvableBomError) Error() string {
	return fmt.Sprintf("cannot resolve BOM for %s: %s", e.ItemCode, e.Reason)
}

// ErrorCode classifies an error into one of the client-facing codes above.
func ErrorCode(err error) string {
	var ve *ValidationError
	var ise *InsufficientStockError
	var ube *UnresolvableBomError
	switch {
	case errors.As(err, &ve):
		return ErrCodeValidation
	case errors.As(err, &ise):
		return ErrCodeInsufficientStock
	case errors.As(err, &ube):
		return ErrCodeBomNotFound
	case errors.Is(err, ErrAlreadyPosted):
		return ErrCodeAlreadyPosted
	case errors.Is(err, ErrAlreadyReversed):
		return ErrCodeAlreadyReversed
	case errors.Is(err, ErrDuplicateCode):
		return ErrCodeDuplicateCode
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrConflict):
		return ErrCodeConflict
	default:
		return ""
	}
}
