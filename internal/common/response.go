package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the wire shape of every error returned by the API,
// nested under an "error" key.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

type dataEnvelope struct {
	Data any `json:"data"`
}

// JSON encodes v to the response writer with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data renders a successful payload under the standard "data" envelope.
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, dataEnvelope{Data: v})
}

// JSONError renders an error payload in the canonical shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, errorEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// RenderError writes an AppError using its own status and code. A nil
// or code-less error falls back to a generic 500.
func RenderError(w http.ResponseWriter, err *AppError) {
	if err == nil || err.Code == "" {
		JSONError(w, http.StatusInternalServerError, CodeInternal, "internal error", nil)
		return
	}
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	JSONError(w, status, err.Code, err.Message, err.Details)
}
