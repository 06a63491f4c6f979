package response

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSON writes v as a 200 response body.
func JSON(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

// Status writes v with an explicit status code.
func Status(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

// Error writes {"error": message, "code": code}.
func Error(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
