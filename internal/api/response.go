package api

import (
	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the per-request id.
const RequestIDKey = "request_id"

const RequestIDHeader = "X-Request-ID"

func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// OK writes {"success": true, ...fields}.
func OK(c *gin.Context, status int, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// Fail writes the error envelope {"success": false, "error": message,
// "requestID": id} plus any extra fields and aborts the chain.
func Fail(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{
		"success":   false,
		"error":     message,
		"requestID": RequestID(c),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}
