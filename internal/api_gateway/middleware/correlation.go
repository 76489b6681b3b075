package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationIDHeader is the HTTP header carrying the request correlation id
const CorrelationIDHeader = "X-Correlation-ID"

const correlationIDKey = "correlation_id"

// CorrelationID assigns every request a correlation id, honoring one the
// caller already sent, and echoes it on the response
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Header(CorrelationIDHeader, id)
		c.Set(correlationIDKey, id)

		c.Next()
	}
}

// GetCorrelationID returns the request's correlation id, or empty when the
// middleware did not run
func GetCorrelationID(c *gin.Context) string {
	id, _ := c.Get(correlationIDKey)
	s, _ := id.(string)
	return s
}
