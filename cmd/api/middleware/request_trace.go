package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ai-chat/logger"
	"ai-chat/trace"
)

const maxBodyLog = 1024

// RequestTrace 는 모든 요청에 Request ID 와 Span ID 를 보장하고
// 컨텍스트/헤더에 저장한 뒤 완료 로그에 포함시킨다.
func RequestTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		// 클라이언트 턴의 Request ID 를 이어받는다. inbound 는 span_id=0, 이후 외부 호출은 1,2,3,...
		ctx := trace.FromHeader(req.Context(), req.Header)
		requestID := trace.RequestIDFromContext(ctx)
		c.Request = req.WithContext(ctx)

		span := trace.CurrentSpanID(ctx)
		c.Request.Header.Set(trace.HeaderRequestID, requestID)
		c.Request.Header.Set(trace.HeaderSpanID, span)
		c.Writer.Header().Set(trace.HeaderRequestID, requestID)
		c.Writer.Header().Set(trace.HeaderSpanID, span)

		var bodySnippet string
		if req.Body != nil && req.ContentLength != 0 &&
			(req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch) {
			if body, err := io.ReadAll(req.Body); err == nil {
				bodySnippet = string(body[:min(len(body), maxBodyLog)])
				// 핸들러에서 다시 읽을 수 있도록 복원한다.
				c.Request.Body = io.NopCloser(bytes.NewReader(body))
			}
		}

		c.Next()

		fields := logger.Fields{
			"method":     req.Method,
			"path":       req.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"request_id": requestID,
			"span_id":    trace.CurrentSpanID(c.Request.Context()),
		}
		if parent := trace.ParentSpanFromContext(ctx); parent != "" {
			fields["parent_span_id"] = parent
		}
		if q := req.URL.Query(); len(q) > 0 {
			fields["query_params"] = map[string][]string(q)
		}
		if bodySnippet != "" {
			fields["body"] = bodySnippet
		}
		logger.InfoWithFields("completed request", fields)
	}
}
