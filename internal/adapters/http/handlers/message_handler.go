package handlers

import (
	"errors"

	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// MessageHandler handles reminder message endpoints
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// GetUserMessages lists a user's reminders
// @Summary Get user messages
// @Description List due-soon and overdue reminders with read state
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} response.Response
// @Router /messages/{userId} [get]
func (h *MessageHandler) GetUserMessages(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return response.BadRequest(c, "Invalid user ID")
	}

	result, err := h.messageService.GetUserMessages(c.Context(), uint(userID))
	if err != nil {
		return response.InternalServerError(c, "Failed to retrieve messages")
	}

	// Reminders are derived from live loan state
	c.Set("Cache-Control", "no-store")

	return response.Success(c, "Messages retrieved successfully", result)
}

// GetUserNotifications lists a user's reminders without read tracking
// @Summary Get user notifications
// @Description List current due-soon and overdue reminders
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} response.Response
// @Router /notifications/{userId} [get]
func (h *MessageHandler) GetUserNotifications(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return response.BadRequest(c, "Invalid user ID")
	}

	messages, err := h.messageService.GetUserNotifications(c.Context(), uint(userID))
	if err != nil {
		return response.InternalServerError(c, "Failed to retrieve notifications")
	}

	c.Set("Cache-Control", "no-store")

	return response.Success(c, "Notifications retrieved successfully", fiber.Map{
		"notifications": messages,
	})
}

// MarkRead dismisses a reminder for the current user
// @Summary Mark message read
// @Description Dismiss a reminder; the dismissal survives regeneration
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param messageId path string true "Message ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /messages/{userId}/read/{messageId} [put]
func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return response.BadRequest(c, "Invalid user ID")
	}

	messageID := c.Params("messageId")
	if messageID == "" {
		return response.BadRequest(c, "Message ID is required")
	}

	if err := h.messageService.MarkRead(c.Context(), uint(userID), messageID); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return response.BadRequest(c, "Invalid message ID")
		}
		return response.InternalServerError(c, "Failed to mark message as read")
	}

	return response.Success(c, "Message marked as read", nil)
}
