package errors

import (
	// Go Internal Packages
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error so callers can decide whether it is fatal to a run
// and which code to report outward.
type Kind string

const (
	Internal    Kind = "INTERNAL_ERROR"
	Invalid     Kind = "VALIDATION_ERROR"
	Aggregation Kind = "AGGREGATION_ERROR"
	Evaluation  Kind = "EVALUATION_ERROR"
	Persistence Kind = "PERSISTENCE_ERROR"
	Source      Kind = "SOURCE_ERROR"
	Conflict    Kind = "CONFLICT"
	Canceled    Kind = "CANCELED"
	NotFound    Kind = "NOT_FOUND"
)

// Error is the error type carried across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error of the given kind wrapping err (which may be nil).
func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain. Context
// cancellation is reported as Canceled even when it was never wrapped.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if IsCanceled(err) {
		return Canceled
	}
	return Internal
}

// IsKind reports whether any *Error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// IsCanceled reports whether err stems from a canceled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Is and As re-export the standard library helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func New(msg string) error { return errors.New(msg) }

// ValidationErrors collects field level validation messages.
type ValidationErrors map[string][]string

// ValidationErrs returns an empty ValidationErrors collector.
func ValidationErrs() ValidationErrors {
	return ValidationErrors{}
}

// Add records msg against field.
func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

// Err returns nil when nothing was collected, otherwise an Invalid error
// listing every field in a stable order.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(v[f], ", ")))
	}
	return E(Invalid, strings.Join(parts, "; "), nil)
}
