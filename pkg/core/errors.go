package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of a run.
type ErrorKind string

const (
	// KindSourceUnavailable means an input file or the store could not be reached.
	KindSourceUnavailable ErrorKind = "SOURCE_UNAVAILABLE"

	// KindSchemaViolation means an input table lacks a required column or breaks
	// a data model invariant.
	KindSchemaViolation ErrorKind = "SCHEMA_VIOLATION"
)

// Error is a fatal error of a given kind raised by operation Op.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// Sentinels for errors.Is matching on kind only.
var (
	ErrSourceUnavailable = &Error{Kind: KindSourceUnavailable}
	ErrSchemaViolation   = &Error{Kind: KindSchemaViolation}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind-only sentinel of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// SourceUnavailable wraps err as a SourceUnavailable failure of op.
func SourceUnavailable(op string, err error) error {
	return &Error{Kind: KindSourceUnavailable, Op: op, Err: err}
}

// SchemaViolation builds a SchemaViolation failure of op.
func SchemaViolation(op, format string, args ...any) error {
	return &Error{Kind: KindSchemaViolation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WarningCode identifies a class of data-quality warning.
type WarningCode string

// Data-quality warning codes.
const (
	WarnDuplicateCustomerID WarningCode = "duplicate_customer_id"
	WarnInvalidMobileNumber WarningCode = "invalid_mobile_number"
	WarnNegativeAmount      WarningCode = "negative_amount"
	WarnInvalidSKUCount     WarningCode = "invalid_sku_count"
	WarnOrphanOrderItem     WarningCode = "orphan_order_item"
	WarnUnknownCustomer     WarningCode = "unknown_customer"
	WarnDroppedRow          WarningCode = "dropped_row"
)

// Warning is a non-fatal data-quality finding. Computation proceeds with the
// data as-is; warnings are reported alongside the results.
type Warning struct {
	Code    WarningCode `json:"code"`
	Count   int         `json:"count"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s (%d): %s", w.Code, w.Count, w.Message)
}
