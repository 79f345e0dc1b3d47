package response

import (
	"encoding/json"
	"net/http"
)

const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf-lite"
)

// JSON writes data wrapped in a Resp envelope.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, Resp{Message: "Success", Data: data})
}

// Raw writes v as the whole body. The game client expects unwrapped bodies.
func Raw(w http.ResponseWriter, statusCode int, v any) {
	writeJSON(w, statusCode, v)
}

func Protobuf(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", ContentTypeProtobuf)
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// Error writes err as a Resp. Anything other than an HTTPError is a 500.
func Error(w http.ResponseWriter, err error) {
	statusCode, body := parseHttpError(err)
	writeJSON(w, statusCode, body)
}

// ValidationError reports request validation failures as 400.
func ValidationError(w http.ResponseWriter, code int, details any) {
	writeJSON(w, http.StatusBadRequest, Resp{
		ErrorCode: code,
		Message:   "Validation failed",
		Errors:    details,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
