package shared

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Failure writes the {success:false, error, message} envelope used for
// proxy-level and unexpected failures.
func Failure(w http.ResponseWriter, status int, errMsg, detail string) {
	JSON(w, status, map[string]interface{}{
		"success": false,
		"error":   errMsg,
		"message": detail,
	})
}
