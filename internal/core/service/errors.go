package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidQuantity          = errors.New("quantity must be a number")
	ErrNegativeQuantity         = errors.New("quantity cannot be negative")
	ErrQuantityExceedsAvailable = errors.New("quantity exceeds available")
	ErrMissingSession           = errors.New("missing session id")
	ErrNoActiveWarehouse        = errors.New("no warehouse selected")
	ErrWarehouseNotFound        = errors.New("warehouse not found")
	ErrItemNotFound             = errors.New("item not found")
	ErrStaleSnapshot            = errors.New("inventory changed since it was loaded")
	ErrOrderNotFound            = errors.New("order not found")
	ErrDuplicateRequest         = errors.New("duplicate request")
	ErrTransferInProgress       = errors.New("another transfer for this item is in progress")
	ErrInvalidOrder             = errors.New("invalid order")
	ErrInvalidWarehouse         = errors.New("invalid warehouse")
	ErrInvalidFilter            = errors.New("invalid filter")
)

// ValidationError is a rejected single-item transfer.
type ValidationError struct {
	Item   string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return ErrQuantityExceedsAvailable }

// BatchValidationError rejects a whole partial-billing batch. Reasons is keyed by item name.
type BatchValidationError struct {
	Reasons map[string]string
	Cause   error
}

func (e *BatchValidationError) Error() string {
	names := make([]string, 0, len(e.Reasons))
	for name := range e.Reasons {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Reasons[name]))
	}
	return "Please correct the errors before submitting. " + strings.Join(parts, "; ")
}

func (e *BatchValidationError) Unwrap() error { return e.Cause }

// FieldError lists invalid fields of an order or warehouse payload.
type FieldError struct {
	Fields map[string]string
	Cause  error
}

func (e *FieldError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%v: %s", e.Cause, strings.Join(names, ", "))
}

func (e *FieldError) Unwrap() error { return e.Cause }

// PersistError is a store failure after validation passed. Message is user facing.
type PersistError struct {
	Message string
	Err     error
}

func (e *PersistError) Error() string { return fmt.Sprintf("%s: %v", e.Message, e.Err) }

func (e *PersistError) Unwrap() error { return e.Err }
