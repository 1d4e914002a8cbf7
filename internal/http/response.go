package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type messageBody struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// statusFor maps the error taxonomy onto response codes. Ledger failures
// that are not the user's fault surface as 502.
func statusFor(err error) int {
	var (
		verr *core.ValidationError
		aerr *ledger.AuthError
		serr *ledger.ServerError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &aerr):
		return http.StatusUnauthorized
	case errors.As(err, &serr):
		if serr.Status >= 400 && serr.Status < 500 {
			return serr.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// errorBody carries the notice plus, for validation errors, the offending
// fields.
func errorBody(err error) messageBody {
	body := messageBody{Message: ledger.Message(err)}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	return body
}

func errorType(err error) string {
	var (
		verr *core.ValidationError
		aerr *ledger.AuthError
		serr *ledger.ServerError
	)
	switch {
	case errors.As(err, &verr):
		return log.ErrorTypeValidation
	case errors.As(err, &aerr):
		return log.ErrorTypeAuth
	case errors.As(err, &serr):
		return log.ErrorTypeServer
	}
	return log.ErrorTypeNetwork
}
