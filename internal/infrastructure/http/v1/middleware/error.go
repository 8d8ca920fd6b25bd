package middleware

import (
	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/infrastructure/storage/postgres"
	"lotkeeper/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Check for errors
		if len(c.Errors) == 0 {
			return
		}

		// Get last error
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		// Try to extract AppError
		if appErr, ok := apperror.AsAppError(err); ok {
			// Log internal error if present
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}

			body := gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}

			failIdempotency(c, appErr.HTTPStatus, body)
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		// Unknown error - log and return generic message
		logger.Error(c.Request.Context(), "unhandled error",
			"error", err,
		)

		body := gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": c.GetString("request_id"),
			},
		}

		failIdempotency(c, 500, body)
		c.JSON(500, body)
	}
}

// failIdempotency marks the idempotency key as failed with the exact response
// we return, so a retry replays the same error (best-effort).
func failIdempotency(c *gin.Context, status int, body any) {
	key, exists := c.Get("idempotency_key")
	if !exists {
		return
	}
	store, ok := c.Get("idempotency_store")
	if !ok {
		return
	}
	if s, ok := store.(*postgres.IdempotencyStore); ok && s != nil {
		_ = s.FailKey(c.Request.Context(), key.(string), status, "application/json", body)
	}
}
