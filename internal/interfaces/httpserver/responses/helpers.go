package responses

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// HandleError writes err as a JSON error. Platform errors keep their type; bare domain
// sentinels are mapped to the matching status.
func HandleError(c *gin.Context, err error, message string) {
	logger := log.With().Str("path", c.Request.URL.Path).Logger()

	if platformerrors.GetPlatformError(err) == nil {
		switch {
		case errors.Is(err, chat.ErrConversationNotFound), errors.Is(err, chat.ErrMessageNotFound):
			platformerrors.WriteNotFound(c, message)
			return
		case errors.Is(err, chat.ErrForbidden):
			platformerrors.WriteForbidden(c, message)
			return
		case errors.Is(err, user.ErrEmailTaken):
			platformerrors.WriteConflict(c, message)
			return
		case errors.Is(err, user.ErrInvalidCredentials):
			platformerrors.WriteUnauthorized(c, message)
			return
		}
	}

	platformerrors.WriteError(c, err, logger)
}

// HandleNewError writes a typed error created at the route layer, such as a binding failure.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message string) {
	c.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(errorType), ErrorResponse{
		Error: &ErrorDetail{
			Message:   message,
			Type:      platformerrors.ErrorTypeString(errorType),
			RequestID: platformerrors.RequestIDFromContext(c.Request.Context()),
		},
	})
}
