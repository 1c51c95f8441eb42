// Package responses contains HTTP response DTOs and error writers.
package responses

import (
	"github.com/janhq/evaluator-server/internal/domain/user"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// MeResponse is returned by GET /v1/auth/me. User is nil for guests.
type MeResponse struct {
	Principal user.Principal `json:"principal"`
	User      *user.User     `json:"user,omitempty"`
}

// StatusResponse is returned by health endpoints.
type StatusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
