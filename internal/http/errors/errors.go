// Package errors maps domain failures onto HTTP responses.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
)

// AppError is an error ready to be written to a client.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"error"`
	Fields     map[string]string `json:"fields,omitempty"`
	HTTPStatus int               `json:"-"`
	RetryAfter time.Duration     `json:"-"`
	Err        error             `json:"-"` // logged, never sent
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail returns a copy with a different message.
func (e *AppError) WithDetail(msg string) *AppError {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithCause returns a copy carrying err.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrBadRequest          = &AppError{Code: "bad_request", Message: "malformed request", HTTPStatus: http.StatusBadRequest}
	ErrInvalidJSON         = &AppError{Code: "invalid_json", Message: "request body is not valid JSON", HTTPStatus: http.StatusBadRequest}
	ErrBodyTooLarge        = &AppError{Code: "body_too_large", Message: "request body too large", HTTPStatus: http.StatusRequestEntityTooLarge}
	ErrNotFound            = &AppError{Code: "not_found", Message: "not found", HTTPStatus: http.StatusNotFound}
	ErrMethodNotAllowed    = &AppError{Code: "method_not_allowed", Message: "method not allowed", HTTPStatus: http.StatusMethodNotAllowed}
	ErrInternalServerError = &AppError{Code: "internal", Message: "internal server error", HTTPStatus: http.StatusInternalServerError}
)

var statusByKind = map[domain.Kind]int{
	domain.KindValidation:         http.StatusBadRequest,
	domain.KindInvalidCode:        http.StatusBadRequest,
	domain.KindInvalidState:       http.StatusBadRequest,
	domain.KindUnauthorized:       http.StatusUnauthorized,
	domain.KindInvalidCredentials: http.StatusUnauthorized,
	domain.KindForbidden:          http.StatusForbidden,
	domain.KindAccountBanned:      http.StatusForbidden,
	domain.KindInvitationRequired: http.StatusForbidden,
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindExpired:            http.StatusGone,
	domain.KindAlreadyConsumed:    http.StatusGone,
	domain.KindConflict:           http.StatusConflict,
	domain.KindThrottled:          http.StatusTooManyRequests,
	domain.KindServiceUnavailable: http.StatusServiceUnavailable,
	domain.KindInternal:           http.StatusInternalServerError,
}

// FromError converts err. Domain errors keep their kind as code; anything
// else becomes a generic internal error.
func FromError(err error) *AppError {
	if ae, ok := err.(*AppError); ok {
		return ae
	}
	de, ok := domain.AsError(err)
	if !ok {
		return ErrInternalServerError.WithCause(err)
	}
	status, ok := statusByKind[de.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	ae := &AppError{
		Code:       string(de.Kind),
		Message:    de.Message,
		Fields:     de.Fields,
		HTTPStatus: status,
		RetryAfter: de.RetryAfter,
		Err:        de.Err,
	}
	if status == http.StatusInternalServerError {
		ae.Message = ErrInternalServerError.Message
	}
	return ae
}

// WriteError writes err as {error, code, fields}.
func WriteError(w http.ResponseWriter, err error) {
	ae := FromError(err)
	if ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int((ae.RetryAfter+time.Second-1)/time.Second)))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(ae.HTTPStatus)
	_ = json.NewEncoder(w).Encode(ae)
}
