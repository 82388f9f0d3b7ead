package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMapping(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("%w: no session", ErrUnauthenticated), "unauthenticated", http.StatusUnauthorized},
		{fmt.Errorf("%w: secret mismatch", ErrUnauthorized), "unauthorized", http.StatusUnauthorized},
		{fmt.Errorf("%w: not a party", ErrForbidden), "forbidden", http.StatusForbidden},
		{fmt.Errorf("%w: escrow", ErrNotFound), "not_found", http.StatusNotFound},
		{fmt.Errorf("%w: amount", ErrInvalidInput), "invalid_input", http.StatusBadRequest},
		{fmt.Errorf("%w: backwards", ErrInvalidTransition), "invalid_transition", http.StatusBadRequest},
		{fmt.Errorf("%w: checklist exists", ErrConflict), "conflict", http.StatusConflict},
		{errors.New("connection reset"), "internal", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := Code(tt.err); got != tt.code {
				t.Errorf("Code() = %q, want %q", got, tt.code)
			}
			if got := HTTPStatus(tt.err); got != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestMessageHidesCause(t *testing.T) {
	if got := Message(fmt.Errorf("%w: secret abc mismatched", ErrUnauthorized)); got != "invalid webhook credentials" {
		t.Errorf("webhook message leaked detail: %q", got)
	}
	if got := Message(errors.New("pq: relation does not exist")); got != "internal server error" {
		t.Errorf("internal message leaked detail: %q", got)
	}
	if got := Message(fmt.Errorf("%w: escrowAmount must be positive", ErrInvalidInput)); got != "invalid input: escrowAmount must be positive" {
		t.Errorf("unexpected message %q", got)
	}
}
