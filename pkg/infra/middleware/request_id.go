package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
)

// RequestID reuses an incoming X-Request-ID or generates a ULID, echoes it
// in the response header and stores it in the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(common.HeaderXRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = common.NewULID()
		}

		c.Header(common.HeaderXRequestID, requestID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
