// Package apperr defines the error taxonomy shared by every core operation.
//
// Each error carries a Kind that the transport layer maps to a status code,
// and optionally a list of detail strings (used by checkout validation, which
// aggregates every problem instead of failing on the first one).
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind uint8

const (
	// KindUnknown is the zero value; infrastructure failures end up here.
	KindUnknown Kind = iota
	// KindValidation marks malformed input the caller can correct and retry.
	KindValidation
	// KindNotFound marks a missing session, order, promo code or product.
	KindNotFound
	// KindUnauthorized marks access to a resource owned by another user.
	KindUnauthorized
	// KindStateConflict marks an operation illegal in the current state:
	// bad status transition, double-cancellation, expired/consumed session.
	KindStateConflict
	// KindBusinessRule marks a violated business rule: cancellation window
	// exceeded, promo code outside its validity window, usage limit hit.
	KindBusinessRule
)

// Error is the concrete error type raised by core operations.
type Error struct {
	Kind    Kind
	Message string

	// Details holds the aggregated problem list for validation failures.
	// Empty for single-cause errors.
	Details []string

	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a kinded error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a validation error carrying an aggregated detail list.
func Validation(message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return Newf(KindUnauthorized, format, args...)
}

func StateConflict(format string, args ...any) *Error {
	return Newf(KindStateConflict, format, args...)
}

func BusinessRule(format string, args ...any) *Error {
	return Newf(KindBusinessRule, format, args...)
}

// KindOf extracts the Kind from any error in the chain.
// Returns KindUnknown for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DetailsOf returns the aggregated detail list, or nil for plain errors.
func DetailsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
