package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"ai-chat/chaterrors"
	"ai-chat/cmd/api/dto"
	"ai-chat/cmd/api/services"
	"ai-chat/llm"
	"ai-chat/logger"
	"ai-chat/trace"
)

// CompletionHandler godoc
// @Summary      Stream a completion
// @Description  Streams the assistant reply as server-sent events. Each `data:` line is a JSON object of type content, usage, done or error.
// @Tags         chat
// @Accept       json
// @Produce      text/event-stream
// @Param        body  body      dto.CompletionRequestDTO  true  "conversation"
// @Success      200   {object}  llm.Event
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Failure      401   {object}  dto.ErrorResponseDTO
// @Failure      429   {object}  dto.ErrorResponseDTO
// @Failure      500   {object}  dto.ErrorResponseDTO
// @Router       /chat [post]
func CompletionHandler(svc *services.CompletionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.CompletionRequestDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: services.ErrInvalidMessages.Error()})
			return
		}

		ctx := c.Request.Context()
		fields := logger.Fields{
			"request_id": trace.RequestIDFromContext(ctx),
			"messages":   len(req.Messages),
		}

		stream, err := svc.Stream(ctx, llm.Request{
			Model:        req.Model,
			Messages:     req.Messages,
			Instructions: req.Instructions,
		})
		if err != nil {
			if errors.Is(err, services.ErrInvalidMessages) || errors.Is(err, services.ErrInvalidRole) {
				c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: err.Error()})
				return
			}
			fields["error"] = err.Error()
			logger.ErrorWithFields("completion start failed", fields)
			c.JSON(statusFor(err), dto.ErrorResponseDTO{Error: err.Error()})
			return
		}
		defer stream.Close()

		c.Status(http.StatusOK)
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		for stream.Next() {
			writeEvent(c, llm.Event{Type: llm.EventContent, Content: stream.Delta()})
		}
		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				logger.InfoWithFields("client went away mid-stream", fields)
				return
			}
			fields["error"] = err.Error()
			logger.ErrorWithFields("completion stream failed", fields)
			writeEvent(c, llm.Event{Type: llm.EventError, Error: err.Error()})
			return
		}
		if u := stream.Usage(); u != nil {
			writeEvent(c, llm.Event{Type: llm.EventUsage, Usage: u})
			fields["input_tokens"] = u.InputTokens
			fields["output_tokens"] = u.OutputTokens
		}
		writeEvent(c, llm.Event{Type: llm.EventDone})
		logger.InfoWithFields("completion delivered", fields)
	}
}

func writeEvent(c *gin.Context, ev llm.Event) {
	c.Render(-1, sse.Event{Data: ev})
	c.Writer.Flush()
}

// statusFor keeps provider failure classes visible to the remote client,
// whose classifier reads the status code from the error message.
func statusFor(err error) int {
	switch chaterrors.Classify(err).Type {
	case chaterrors.TypeRateLimit:
		return http.StatusTooManyRequests
	case chaterrors.TypeAPIKey:
		return http.StatusUnauthorized
	case chaterrors.TypeModelUnavailable:
		return http.StatusNotFound
	case chaterrors.TypeTimeout:
		return http.StatusGatewayTimeout
	case chaterrors.TypeNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
