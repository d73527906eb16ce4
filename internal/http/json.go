package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

// maxRequestBytes bounds structured request bodies (job creation, login).
// Evidence reports carry their own, larger limit in the report handler.
const maxRequestBytes = 64 << 10

// DecodeJSON decodes a request body into dst, rejecting unknown fields,
// oversized bodies, and trailing garbage. On failure the error response has
// already been written and the handler should return.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	// A second value after the document means the body is not a single
	// JSON object.
	if dec.More() {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_json",
			Err:     errors.New("request body contains trailing data"),
		})
		return false
	}

	return true
}

// WriteJSON writes v as a JSON response with the given status code. The body
// is buffered first so an encoding failure can still produce a clean 500.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Client went away mid-write; nothing left to do.
		return
	}
}

// ErrorParams carries an HTTP status, a stable machine-readable error code,
// and the underlying error for the message body.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError renders the standard error body: error code, human message,
// and, for validation failures, the offending field.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := map[string]string{"error": p.ErrCode, "message": p.Err.Error()}
	if field := apperrors.GetField(p.Err); field != "" {
		body["field"] = field
	}
	WriteJSON(w, p.Code, body)
}
