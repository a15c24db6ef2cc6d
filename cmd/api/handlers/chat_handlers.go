package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-chat/cmd/api/dto"
	"ai-chat/cmd/api/services"
	"ai-chat/logger"
	"ai-chat/models"
	"ai-chat/trace"
)

// CreateChatHandler godoc
// @Summary      Create chat
// @Description  Creates a chat. The response is a one-element array holding the new chat.
// @Tags         chats
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateChatRequestDTO  false  "chat"
// @Success      200   {array}   models.Chat
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Failure      500   {object}  dto.ErrorResponseDTO
// @Router       /chats/new [post]
func CreateChatHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.CreateChatRequestDTO
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
				return
			}
		}

		chat, err := svc.CreateChat(c.Request.Context(), req.Title)
		if err != nil {
			internalError(c, "create chat failed", err)
			return
		}
		c.JSON(http.StatusOK, []models.Chat{chat})
	}
}

// ListChatsHandler godoc
// @Summary      List chats
// @Description  Lists every chat, most recently created first.
// @Tags         chats
// @Produce      json
// @Success      200  {array}   models.Chat
// @Failure      500  {object}  dto.ErrorResponseDTO
// @Router       /chats [get]
func ListChatsHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		chats, err := svc.ListChats(c.Request.Context())
		if err != nil {
			internalError(c, "list chats failed", err)
			return
		}
		c.JSON(http.StatusOK, chats)
	}
}

// DeleteChatHandler godoc
// @Summary      Delete chat
// @Description  Deletes a chat together with its messages.
// @Tags         chats
// @Param        chatId  path  string  true  "chat id"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Failure      500  {object}  dto.ErrorResponseDTO
// @Router       /chats/{chatId} [delete]
func DeleteChatHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.DeleteChat(c.Request.Context(), c.Param("chatId"))
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponseDTO{Error: err.Error()})
		case err != nil:
			internalError(c, "delete chat failed", err)
		default:
			c.Status(http.StatusNoContent)
		}
	}
}

// CreateMessageHandler godoc
// @Summary      Create message
// @Description  Stores a message. Without chatId a new chat is created first.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateMessageRequestDTO  true  "message"
// @Success      200   {object}  models.Message
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Failure      404   {object}  dto.ErrorResponseDTO
// @Failure      500   {object}  dto.ErrorResponseDTO
// @Router       /messages/new [post]
func CreateMessageHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.CreateMessageRequestDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
			return
		}

		msg, err := svc.CreateMessage(c.Request.Context(), services.CreateMessageInput{
			ChatID:       req.ChatID,
			Role:         models.Role(req.Role),
			Content:      req.Content,
			InputTokens:  req.InputTokens,
			OutputTokens: req.OutputTokens,
		})
		switch {
		case errors.Is(err, services.ErrInvalidRole), errors.Is(err, services.ErrInvalidUsage):
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: err.Error()})
		case errors.Is(err, services.ErrChatNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponseDTO{Error: err.Error()})
		case err != nil:
			internalError(c, "create message failed", err)
		default:
			c.JSON(http.StatusOK, msg)
		}
	}
}

// ListMessagesHandler godoc
// @Summary      List messages of a chat
// @Description  Returns the chat's messages, newest first.
// @Tags         messages
// @Produce      json
// @Param        chatId  path  string  true  "chat id"
// @Success      200  {array}   models.Message
// @Failure      500  {object}  dto.ErrorResponseDTO
// @Router       /messages/{chatId} [get]
func ListMessagesHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := svc.ListMessages(c.Request.Context(), c.Param("chatId"))
		if err != nil {
			internalError(c, "list messages failed", err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

func internalError(c *gin.Context, msg string, err error) {
	logger.ErrorWithFields(msg, logger.Fields{
		"request_id": trace.RequestIDFromContext(c.Request.Context()),
		"path":       c.Request.URL.Path,
		"error":      err.Error(),
	})
	c.JSON(http.StatusInternalServerError, dto.ErrorResponseDTO{Error: "internal_error"})
}
