// Package requests contains HTTP request DTOs and their binding validators.
package requests

import (
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/janhq/evaluator-server/internal/domain/chat"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("sender", func(fl validator.FieldLevel) bool {
				return chat.Sender(fl.Field().String()).Valid()
			})
		}
	})
}

// SendMessageRequest is the body of POST /v1/chat/message. Content is a string or an
// object with text, language and metadata.
type SendMessageRequest struct {
	ConversationID string          `json:"conversationId"`
	Sender         string          `json:"sender" binding:"omitempty,sender"`
	Content        json.RawMessage `json:"content" binding:"required"`
}

// EvaluateMessageRequest is the body of PATCH /v1/chat/message/:id/evaluate.
type EvaluateMessageRequest struct {
	Rating            int     `json:"rating" binding:"required,min=1,max=5"`
	EvaluationComment *string `json:"evaluationComment"`
}

// GuestLoginRequest is the body of POST /v1/auth/guest.
type GuestLoginRequest struct {
	Name string `json:"name"`
}

// SignupRequest is the body of POST /v1/auth/signup.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"`
	GuestID  string `json:"guestId"`
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	GuestID  string `json:"guestId"`
}
