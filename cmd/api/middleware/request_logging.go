package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"ai-chat/logger"
)

// RequestLoggingMiddleware 는 요청부터 응답까지 걸린 시간을 debug 레벨로 남긴다.
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debugf(
			"api_request method=%s path=%s status=%d duration_ms=%d",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
		)
	}
}
