// Package apperrors defines the single tagged error type shared by every
// domain service. Each error carries a kind (the discriminant the transport
// maps to an HTTP status) and a human-readable reason.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind discriminates domain error categories.
type Kind int

const (
	// KindValidation indicates malformed input reaching a service. Upstream
	// request validation is expected to filter these; services check anyway.
	KindValidation Kind = iota
	// KindForbidden indicates the authenticated actor lacks the required
	// permission or is not a member of the target community.
	KindForbidden
	// KindNotFound indicates a referenced community, membership, or invite
	// does not exist.
	KindNotFound
	// KindConflict indicates the operation would violate a lifecycle
	// invariant, e.g. duplicate membership or last-admin departure.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is the discriminated error returned by domain services.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Validationf builds a validation error.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds a forbidden error.
func Forbiddenf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error.
func Conflictf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a domain error and whether err is one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindValidation
}

// IsForbidden reports whether err is a forbidden error.
func IsForbidden(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindForbidden
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindNotFound
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindConflict
}
