package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// ExposeErrors adds the raw error text to error responses (development mode)
var ExposeErrors = true

// WriteJSON writes v as the JSON response body with the given status
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// WriteError writes {"message": ...}, plus "error" with err's text when ExposeErrors is set
func WriteError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"message": message}
	if err != nil && ExposeErrors {
		body["error"] = err.Error()
	}
	if status >= http.StatusInternalServerError && err != nil {
		log.Printf("%d %s: %v", status, message, err)
	}
	WriteJSON(w, status, body)
}
