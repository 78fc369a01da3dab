// Package apperr defines the error taxonomy shared by every component that
// sits behind an HTTP route. Each type maps to exactly one status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthenticationError means the credential was missing, malformed, forged or
// expired. The message never says which.
type AuthenticationError struct{}

func (*AuthenticationError) Error() string { return "not authenticated" }

// AuthorizationError means the caller is known but lacks the role or tenant
// relationship for the capability.
type AuthorizationError struct {
	Capability string
}

func (e *AuthorizationError) Error() string {
	if e.Capability == "" {
		return "not authorized"
	}
	return "not authorized: " + e.Capability
}

// NotFoundError covers both absent resources and resources the caller may not
// see, so tenant existence never leaks.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// SchemaNotReadyError reports that the store is missing a migration. Migration
// is the stable migration identifier and is safe to show to an operator.
type SchemaNotReadyError struct {
	Migration string
}

func (e *SchemaNotReadyError) Error() string {
	return "schema not ready: apply migration " + e.Migration
}

// InternalError wraps an unclassified infrastructure failure. Op names the
// operation for logs; the cause is never rendered to callers.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *InternalError) Unwrap() error { return e.Err }

func Unauthenticated() error { return &AuthenticationError{} }

func Forbidden(capability string) error { return &AuthorizationError{Capability: capability} }

func NotFound(resource string) error { return &NotFoundError{Resource: resource} }

func Invalid(fields ...FieldError) error { return &ValidationError{Fields: fields} }

func InvalidField(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: msg}}}
}

func SchemaNotReady(migration string) error { return &SchemaNotReadyError{Migration: migration} }

func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTyped(err) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

// IsTyped reports whether err already belongs to the taxonomy.
func IsTyped(err error) bool {
	var (
		authn  *AuthenticationError
		authz  *AuthorizationError
		nf     *NotFoundError
		inv    *ValidationError
		schema *SchemaNotReadyError
		in     *InternalError
	)
	return errors.As(err, &authn) || errors.As(err, &authz) || errors.As(err, &nf) ||
		errors.As(err, &inv) || errors.As(err, &schema) || errors.As(err, &in)
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	var (
		authn  *AuthenticationError
		authz  *AuthorizationError
		nf     *NotFoundError
		inv    *ValidationError
		schema *SchemaNotReadyError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &authn):
		return http.StatusUnauthorized
	case errors.As(err, &authz):
		return http.StatusForbidden
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &inv):
		return http.StatusBadRequest
	case errors.As(err, &schema):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
