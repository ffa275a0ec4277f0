package httpx

import (
	"encoding/json"
	"net/http"
)

// errorBody is the error envelope shared by every endpoint: a short machine
// code plus optional details (field violations, offending values).
type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// JSON encodes the payload and writes it with the given status. Encoding
// happens before the header so a marshal failure still yields a clean 500.
func JSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"error":"encode_error"}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// JSONError writes the uniform error envelope.
func JSONError(w http.ResponseWriter, status int, code string, details any) {
	JSON(w, status, errorBody{Error: code, Details: details})
}
