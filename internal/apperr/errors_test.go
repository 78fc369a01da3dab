package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"authn", Unauthenticated(), http.StatusUnauthorized},
		{"authz", Forbidden("tickets:write"), http.StatusForbidden},
		{"not found", NotFound("ticket"), http.StatusNotFound},
		{"validation", InvalidField("status", "must be one of open pending resolved closed"), http.StatusBadRequest},
		{"schema", SchemaNotReady("20260203002000_support_ticket_assignment"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("get: %w", NotFound("ticket")), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range cases {
		if got := Status(tt.err); got != tt.want {
			t.Fatalf("%s: Status()=%d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestInternalKeepsTypedErrors(t *testing.T) {
	nf := NotFound("ticket")
	if got := Internal("get ticket", nf); got != nf {
		t.Fatalf("Internal rewrapped a typed error: %v", got)
	}

	cause := errors.New("connection reset")
	err := Internal("get ticket", cause)
	var in *InternalError
	if !errors.As(err, &in) {
		t.Fatalf("expected InternalError, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("InternalError must unwrap to its cause")
	}
	if Internal("noop", nil) != nil {
		t.Fatal("Internal(nil) must be nil")
	}
}

func TestAuthorizationMessageOmitsTenant(t *testing.T) {
	err := Forbidden("tickets:read")
	if err.Error() != "not authorized: tickets:read" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
