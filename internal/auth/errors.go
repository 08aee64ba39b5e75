package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a protocol failure with a fixed HTTP status. When Detail is
// set it becomes the response body; otherwise the body is {"error": Message}.
type APIError struct {
	Status  int
	Message string
	Detail  any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

// WriteError renders an APIError as a JSON response.
func WriteError(w http.ResponseWriter, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)

	body := apiErr.Detail
	if body == nil {
		body = map[string]string{"error": apiErr.Message}
	}
	json.NewEncoder(w).Encode(body)
}

// RateLimitExceeded is the structured 429 body for rate rejections.
type RateLimitExceeded struct {
	Error   string `json:"error"`
	Limit   int    `json:"limit"`
	Current int64  `json:"current"`
	ResetIn int    `json:"reset_in"`
}

// QuotaExceeded is the structured 429 body for quota rejections.
type QuotaExceeded struct {
	Error   string `json:"error"`
	Limit   int    `json:"limit"`
	Reset   string `json:"reset"`
	Upgrade string `json:"upgrade"`
}
