// Package respond writes JSON bodies and maps domain errors to statuses.
package respond

import (
	"encoding/json"
	"log"
	"net/http"

	"zen-journal-backend/internal/models"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Status is the HTTP status for an error kind.
func Status(err error) int {
	switch models.Kind(err) {
	case "EmptyContent", "InvalidInput":
		return http.StatusBadRequest
	case "ExtractionMalformed":
		return http.StatusBadGateway
	case "RateLimited":
		return http.StatusTooManyRequests
	case "QuotaExhausted":
		return http.StatusPaymentRequired
	case "NotFound":
		return http.StatusNotFound
	case "NotConnected":
		return http.StatusConflict
	case "AuthExpired":
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Error writes {error, kind}. Internal failures get the generic message;
// their detail only goes to the log.
func Error(w http.ResponseWriter, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		log.Printf("[WARN] request failed: %v", err)
	}
	JSON(w, status, map[string]string{
		"error": models.UserMessage(err),
		"kind":  models.Kind(err),
	})
}

// BadRequest reports a malformed request body or parameter.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, map[string]string{"error": msg, "kind": "BadRequest"})
}
