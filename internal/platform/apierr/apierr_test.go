package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsFindsWrappedError(t *testing.T) {
	base := BadRequest("invalid_request", errors.New("user_id must be numeric"))
	wrapped := fmt.Errorf("bind: %w", base)

	got, ok := As(wrapped)
	if !ok {
		t.Fatalf("As: expected to find api error")
	}
	if got.Status != http.StatusBadRequest || got.Code != "invalid_request" {
		t.Fatalf("As: unexpected %+v", got)
	}
	if got.Error() != "user_id must be numeric" {
		t.Fatalf("Error(): want=%q got=%q", "user_id must be numeric", got.Error())
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Fatalf("As: plain error should not match")
	}
}

func TestErrorMessageFallbacks(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{New(http.StatusForbidden, "agent_mismatch", nil), "agent_mismatch"},
		{New(http.StatusTeapot, "", nil), "api error (418)"},
		{&Error{}, "api error"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("Error(): want=%q got=%q", tc.want, got)
		}
	}
}
