// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/huddlehq/huddle/pkg/apperrors"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// WriteDomainError maps a domain error to its HTTP status. Validation
// becomes 400, Forbidden 403, NotFound 404, Conflict 409; anything not
// carrying a kind is treated as an internal error and its detail is not
// echoed to the client.
func WriteDomainError(w http.ResponseWriter, err error) {
	kind, ok := apperrors.KindOf(err)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	switch kind {
	case apperrors.KindValidation:
		WriteErrorMessage(w, http.StatusBadRequest, err.Error())
	case apperrors.KindForbidden:
		WriteErrorMessage(w, http.StatusForbidden, err.Error())
	case apperrors.KindNotFound:
		WriteErrorMessage(w, http.StatusNotFound, err.Error())
	case apperrors.KindConflict:
		WriteErrorMessage(w, http.StatusConflict, err.Error())
	default:
		WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
