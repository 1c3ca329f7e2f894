// Package handlers implements the HTTP-facing handlers for the serving API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body for every handler in
// this package.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a plain {"error": "..."} response.
func writeError(w http.ResponseWriter, statusCode int, err error) {
	writeJSON(w, statusCode, ErrorResponse{Error: err.Error()})
}

// writeAppError maps an AppError (or any error) to the HTTP status its
// ErrorCode carries and writes the corresponding error response. Errors that
// aren't AppErrors are treated as internal.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	writeError(w, code.HTTPStatus(), err)
}
