package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bookbazaar/internal/app"
)

const (
	codeUnauthorized       = "AUTH_UNAUTHORIZED"
	codeValidation         = "VALIDATION_FAILED"
	codeInvalidBookID      = "INVALID_BOOK_ID"
	codeInvalidJSON        = "INVALID_JSON"
	codeNotFound           = "NOT_FOUND"
	codeEmailTaken         = "EMAIL_TAKEN"
	codeRateLimited        = "RATE_LIMITED"
	codePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	codeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	codeServiceUnavailable = "SERVICE_UNAVAILABLE"
	codeInternal           = "INTERNAL_ERROR"
)

type errorDetail struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error     string        `json:"error"`
	Code      string        `json:"code"`
	RequestID string        `json:"requestId,omitempty"`
	Details   []errorDetail `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details ...errorDetail) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
		Details:   details,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}

func invalidJSON(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, codeInvalidJSON, "Invalid JSON body")
}

// writeAppError maps app errors onto the HTTP error taxonomy. Anything
// unrecognized is an internal failure whose text is only shown in dev mode.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrRegistrationFieldsRequired),
		errors.Is(err, app.ErrLoginFieldsRequired),
		errors.Is(err, app.ErrPasswordTooShort),
		errors.Is(err, app.ErrProfileFieldsRequired),
		errors.Is(err, app.ErrBookFieldsRequired),
		errors.Is(err, app.ErrCoverTypeUnsupported):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
	case errors.Is(err, app.ErrSellerNotFound),
		errors.Is(err, app.ErrBookNotEditable),
		errors.Is(err, app.ErrBookNotDeletable),
		errors.Is(err, app.ErrSeedJobNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, app.ErrEmailRegistered), errors.Is(err, app.ErrEmailTaken):
		writeError(w, http.StatusConflict, codeEmailTaken, err.Error())
	case errors.Is(err, app.ErrCoverStorageDisabled), errors.Is(err, app.ErrSeedQueueDisabled):
		writeError(w, http.StatusServiceUnavailable, codeServiceUnavailable, err.Error())
	default:
		s.logInternal(r, err)
		var details []errorDetail
		if s.devMode {
			details = []errorDetail{{Reason: err.Error()}}
		}
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error", details...)
	}
}
