package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Error codes shared by the coordinator endpoints.
const (
	CodeBadJSON            = "BAD_JSON"
	CodeSchemaViolation    = "SCHEMA_VIOLATION"
	CodeSignatureMismatch  = "SIGNATURE_MISMATCH"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeNotFound           = "NOT_FOUND"
	CodeDBError            = "DB_ERROR"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes a request body with numeric literals preserved, so
// amounts survive the trip into the schema gate untouched.
func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}
