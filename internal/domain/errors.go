package domain

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a domain error. The HTTP layer maps kinds to status codes;
// everything else only compares kinds through errors.Is.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountBanned      Kind = "account_banned"
	KindThrottled          Kind = "throttled"
	KindNotFound           Kind = "not_found"
	KindExpired            Kind = "expired"
	KindAlreadyConsumed    Kind = "already_consumed"
	KindInvitationRequired Kind = "invitation_required"
	KindInvalidState       Kind = "invalid_state"
	KindInvalidCode        Kind = "invalid_code"
	KindConflict           Kind = "conflict"
	KindServiceUnavailable Kind = "service_unavailable"
	KindInternal           Kind = "internal"
)

// Error is the typed error every guard, registry and engine returns.
type Error struct {
	Kind    Kind
	Message string

	// Fields maps a request field to a message key (validation only).
	Fields map[string]string

	// RetryAfter is set on throttled errors.
	RetryAfter time.Duration

	// Err is the underlying cause. It is logged, never serialized.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so wrapped copies still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithCause returns a copy carrying err as cause.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage returns a copy with a different message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ErrAccountBanned      = &Error{Kind: KindAccountBanned, Message: "account is banned"}
	ErrThrottled          = &Error{Kind: KindThrottled, Message: "too many requests, try again later"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrExpired            = &Error{Kind: KindExpired, Message: "token has expired"}
	ErrAlreadyConsumed    = &Error{Kind: KindAlreadyConsumed, Message: "token has already been used"}
	ErrInvitationRequired = &Error{Kind: KindInvitationRequired, Message: "registration requires an invitation"}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Message: "operation not allowed in current two-factor state"}
	ErrInvalidCode        = &Error{Kind: KindInvalidCode, Message: "invalid verification code"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "resource already exists"}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable, Message: "service temporarily unavailable"}
	ErrInternal           = &Error{Kind: KindInternal, Message: "internal server error"}
)

// Validation builds a validation error from field -> message key pairs.
func Validation(fields map[string]string) *Error {
	cp := *ErrValidation
	cp.Fields = fields
	return &cp
}

// Throttled builds a throttled error with a wait hint.
func Throttled(retryAfter time.Duration) *Error {
	cp := *ErrThrottled
	cp.RetryAfter = retryAfter
	return &cp
}

// AsError extracts a *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	return KindInternal
}
