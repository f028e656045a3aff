package handlers

import (
	"ridehail/internal/services"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService services.MessageService
	logger         *logger.Logger
}

func NewMessageHandler(messageService services.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		logger:         log.WithComponent("message_handler"),
	}
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var request services.SendMessageRequest
	if !bindJSON(c, &request) {
		return
	}

	message, err := h.messageService.SendMessage(c.Request.Context(), actor, &request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, message)
}

// GetRideMessages lists a ride's conversation and marks it read for the caller
func (h *MessageHandler) GetRideMessages(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	rideID, ok := parseObjectID(c, "rideId", "ride")
	if !ok {
		return
	}

	messages, err := h.messageService.GetRideMessages(c.Request.Context(), actor, rideID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, messages)
}

func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	messageID, ok := parseObjectID(c, "messageId", "message")
	if !ok {
		return
	}

	message, err := h.messageService.MarkAsRead(c.Request.Context(), actor, messageID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, message)
}

func (h *MessageHandler) GetUnreadMessages(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	messages, err := h.messageService.GetUnreadMessages(c.Request.Context(), actor)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, messages)
}

func (h *MessageHandler) SendSupportMessage(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var request services.SupportMessageRequest
	if !bindJSON(c, &request) {
		return
	}

	message, err := h.messageService.SendSupportMessage(c.Request.Context(), actor, &request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, message)
}

// GetSupportThread returns the caller's support conversation
func (h *MessageHandler) GetSupportThread(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	messages, err := h.messageService.GetSupportThread(c.Request.Context(), actor)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, messages)
}

func (h *MessageHandler) GetSupportConversations(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	conversations, err := h.messageService.GetSupportConversations(c.Request.Context(), actor)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, conversations)
}

func (h *MessageHandler) GetSupportThreadForUser(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	userID, ok := parseObjectID(c, "userId", "user")
	if !ok {
		return
	}

	messages, err := h.messageService.GetSupportThreadForUser(c.Request.Context(), actor, userID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.JSONResponse(c, messages)
}

func (h *MessageHandler) ReplySupport(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var request services.SupportReplyRequest
	if !bindJSON(c, &request) {
		return
	}

	message, err := h.messageService.ReplySupport(c.Request.Context(), actor, &request)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, message)
}
