// Package domain provides shared domain entities and the error taxonomy
// used across services, middleware, and HTTP handlers.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error. The set is closed: every error surfaced
// by this module maps to exactly one Kind, and every Kind maps to exactly
// one HTTP status via HTTPStatus.
type Kind int

const (
	// KindInternal is the fallback for unclassified failures.
	KindInternal Kind = iota
	// KindNotFound covers missing users, roles, and permissions.
	KindNotFound
	// KindTenantNotFound covers unknown tenant ids and subdomains.
	KindTenantNotFound
	// KindContextNotBound means a required tenant binding was absent.
	// This is an integration defect, not a user error.
	KindContextNotBound
	// KindInvalidCredentials covers bad email/password pairs. The message
	// never reveals whether the email exists.
	KindInvalidCredentials
	// KindAccountDisabled means the user record itself is disabled.
	KindAccountDisabled
	// KindTenantDisabled means the user's tenant is suspended or inactive.
	KindTenantDisabled
	// KindInvalidToken covers malformed, expired, or mis-signed tokens.
	KindInvalidToken
	// KindAccessDenied means a valid principal lacks the needed permission.
	KindAccessDenied
	// KindAlreadyExists covers duplicate subdomains, emails, and role names.
	KindAlreadyExists
	// KindValidation covers malformed input rejected before any write.
	KindValidation
)

// Error is the closed tagged error type for the module.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// Is matches two domain errors by Kind, so callers can compare against
// a bare E(kind, "") sentinel.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return e.Kind == de.Kind
	}
	return false
}

// E builds a domain error of the given kind.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Ef builds a domain error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a domain error around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the Kind from any error. Non-domain errors are KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// httpStatus is the explicit Kind -> HTTP status mapping table.
var httpStatus = map[Kind]int{
	KindInternal:           http.StatusInternalServerError,
	KindNotFound:           http.StatusNotFound,
	KindTenantNotFound:     http.StatusNotFound,
	KindContextNotBound:    http.StatusInternalServerError,
	KindInvalidCredentials: http.StatusUnauthorized,
	KindAccountDisabled:    http.StatusUnauthorized,
	KindTenantDisabled:     http.StatusUnauthorized,
	KindInvalidToken:       http.StatusUnauthorized,
	KindAccessDenied:       http.StatusForbidden,
	KindAlreadyExists:      http.StatusConflict,
	KindValidation:         http.StatusBadRequest,
}

// HTTPStatus returns the response status for an error's Kind.
func HTTPStatus(err error) int {
	if s, ok := httpStatus[KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// category is the short error label used in structured error responses.
var category = map[Kind]string{
	KindInternal:           "Internal Server Error",
	KindNotFound:           "Not Found",
	KindTenantNotFound:     "Not Found",
	KindContextNotBound:    "Internal Server Error",
	KindInvalidCredentials: "Unauthorized",
	KindAccountDisabled:    "Unauthorized",
	KindTenantDisabled:     "Unauthorized",
	KindInvalidToken:       "Unauthorized",
	KindAccessDenied:       "Forbidden",
	KindAlreadyExists:      "Conflict",
	KindValidation:         "Bad Request",
}

// Category returns the short error label for an error's Kind.
func Category(err error) string {
	if c, ok := category[KindOf(err)]; ok {
		return c
	}
	return "Internal Server Error"
}

// PublicMessage returns the message safe to return to clients.
// Unclassified failures get a generic message; the detail stays in logs.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != KindInternal {
		return de.Message
	}
	return "An unexpected error occurred. Please try again later."
}

// ErrNotFound is the sentinel used by stores for missing rows.
// Services translate it into the appropriate Kind for their entity.
var ErrNotFound = errors.New("not found")
