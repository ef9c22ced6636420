package api

import (
	"encoding/json"
	"io"
	"net/http"
)

// WriteJSON writes a JSON response body. HTML escaping is disabled so
// identifiers and URLs in payloads stay readable.
func WriteJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// WriteData sends a JSON response with the given status code.
func WriteData(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = WriteJSON(w, data)
}

// WriteError sends an error response with the specified status code.
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteData(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

// WriteNoContent sends an empty 204 response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
