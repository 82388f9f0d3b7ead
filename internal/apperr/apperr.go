// Package apperr defines the error taxonomy shared by services and the HTTP layer.
// Services wrap one of the sentinels with context; handlers map it to a status code
// and a stable machine-readable code.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal error")
)

type kind struct {
	err    error
	code   string
	status int
}

var kinds = []kind{
	{ErrUnauthenticated, "unauthenticated", http.StatusUnauthorized},
	{ErrUnauthorized, "unauthorized", http.StatusUnauthorized},
	{ErrForbidden, "forbidden", http.StatusForbidden},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{ErrInvalidTransition, "invalid_transition", http.StatusBadRequest},
	{ErrConflict, "conflict", http.StatusConflict},
}

func lookup(err error) (kind, bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k, true
		}
	}
	return kind{}, false
}

// Code returns the machine-readable code for err. Unknown errors are "internal".
func Code(err error) string {
	if k, ok := lookup(err); ok {
		return k.code
	}
	return "internal"
}

// HTTPStatus returns the HTTP status for err. Unknown errors are 500.
func HTTPStatus(err error) int {
	if k, ok := lookup(err); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// Message returns the text safe to show a client. Webhook authentication
// failures and internal errors never carry their cause.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "invalid webhook credentials"
	case HTTPStatus(err) >= http.StatusInternalServerError:
		return "internal server error"
	}
	return err.Error()
}

// IsInternal reports whether err falls outside the taxonomy (store failures etc).
func IsInternal(err error) bool {
	_, ok := lookup(err)
	return !ok
}
