package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fintrack/internal/core"
)

// AuthError means the credential is missing or was rejected. It is never
// retried; callers send the user back to login.
type AuthError struct {
	Status  int // 0 when no credential was present
	Message string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return "not logged in"
	}
	if e.Message != "" {
		return fmt.Sprintf("unauthorized (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("unauthorized (%d)", e.Status)
}

// ServerError is a non-success status with whatever message the ledger sent.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("ledger error (%d): %s", e.Status, e.Message)
}

// NetworkError wraps transport failures, timeouts and undecodable bodies.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsAuth reports whether err asks for a fresh login.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Message turns any error into a notice fit to show the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		verr *core.ValidationError
		aerr *AuthError
		serr *ServerError
		nerr *NetworkError
	)
	switch {
	case errors.As(err, &verr):
		return core.Capitalize(verr.Error())
	case errors.As(err, &aerr):
		if aerr.Status != 0 && aerr.Message != "" {
			return aerr.Message
		}
		return "Please log in to continue"
	case errors.As(err, &serr):
		if serr.Message != "" {
			return serr.Message
		}
		return fmt.Sprintf("Request failed with status %d", serr.Status)
	case errors.Is(err, context.DeadlineExceeded):
		return "The ledger took too long to answer, please try again"
	case errors.As(err, &nerr):
		return "Could not reach the ledger, please try again"
	}
	return "Something went wrong"
}

// messageFrom extracts the message or error field of a JSON error body.
func messageFrom(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if m := strings.TrimSpace(payload.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(payload.Error); m != "" {
			return m
		}
	}
	return http.StatusText(status)
}
