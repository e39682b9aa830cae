package handlers

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"distill/internal/analytics"
	"distill/internal/models"
	"distill/internal/services"
)

// ConversationHandler handles HTTP requests for conversation capture
type ConversationHandler struct {
	service *services.ConversationService
	limiter *services.UsageLimiterService
	events  *services.EventService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(service *services.ConversationService, limiter *services.UsageLimiterService, events *services.EventService) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		limiter: limiter,
		events:  events,
	}
}

// Capture stores a conversation captured by the extension
// POST /api/conversations
func (h *ConversationHandler) Capture(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
	workspaceID, _ := c.Locals("workspace_id").(string)

	var req models.CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}
	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Messages are required",
		})
	}

	if h.limiter != nil && !h.limiter.Allow(c.Context(), userID, services.QuotaCapture) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Daily capture limit reached",
		})
	}

	conv, err := h.service.CreateOrUpdate(c.Context(), userID, workspaceID, &req)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "version conflict") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Version conflict - conversation was captured from another tab",
			})
		}
		if strings.Contains(errMsg, "unrecognized") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": errMsg,
			})
		}
		log.Printf("❌ Failed to capture conversation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save conversation",
		})
	}

	if m := services.GetMetrics(); m != nil {
		m.RecordCapture(conv.Source)
	}

	// Re-captures of a live conversation bump the version; only the first
	// capture counts toward the activation funnel.
	if conv.Version == 1 {
		h.recordCapture(c, conv)
	}

	log.Printf("✅ Conversation %s captured for user %s (version: %d)", req.ID, userID, conv.Version)
	return c.Status(fiber.StatusOK).JSON(conv)
}

// captureEventProperties builds the chat_captured payload from a stored
// conversation.
func captureEventProperties(conv *models.Conversation) map[string]interface{} {
	tokenCount := 0
	if conv.Metadata != nil {
		tokenCount = conv.Metadata.TokenCount
	}
	return map[string]interface{}{
		"platform":     conv.Source,
		"privacyMode":  conv.PrivacyMode,
		"tokenCount":   tokenCount,
		"messageCount": len(conv.Messages),
	}
}

// recordCapture appends the chat_captured analytics event. Failures are
// logged only; analytics never blocks a capture.
func (h *ConversationHandler) recordCapture(c *fiber.Ctx, conv *models.Conversation) {
	if h.events == nil {
		return
	}

	raw := captureEventProperties(conv)
	event, verr := analytics.Validate(models.EventChatCaptured, raw, analytics.BaseContext{
		Timestamp:   time.Now().UTC(),
		SessionID:   c.Get("X-Session-Id"),
		UserID:      conv.UserID,
		WorkspaceID: conv.WorkspaceID,
	})
	if verr != nil {
		log.Printf("⚠️ chat_captured event rejected: %v", verr)
		return
	}
	if err := h.events.Append(c.Context(), event, raw); err != nil {
		log.Printf("⚠️ Failed to record chat_captured event: %v", err)
	}
}

// Get retrieves a single conversation
// GET /api/conversations/:id
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}

	conv, err := h.service.Get(c.Context(), userID, conversationID)
	if err != nil {
		if err.Error() == "conversation not found" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Conversation not found",
			})
		}
		log.Printf("❌ Failed to get conversation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get conversation",
		})
	}

	return c.JSON(conv)
}

// List returns a paginated list of conversations
// GET /api/conversations?page=1&page_size=20
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	result, err := h.service.List(c.Context(), userID, page, pageSize)
	if err != nil {
		log.Printf("❌ Failed to list conversations: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list conversations",
		})
	}

	return c.JSON(result)
}

// AppendMessages appends new turns to a live conversation
// POST /api/conversations/:id/messages
func (h *ConversationHandler) AppendMessages(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}

	var req models.AppendMessagesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	conv, err := h.service.AppendMessages(c.Context(), userID, conversationID, &req)
	if err != nil {
		errMsg := err.Error()
		switch {
		case strings.Contains(errMsg, "version conflict"):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Version conflict - please refresh and try again",
			})
		case errMsg == "conversation not found":
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Conversation not found",
			})
		case strings.Contains(errMsg, "unrecognized") || strings.Contains(errMsg, "required"):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": errMsg,
			})
		}
		log.Printf("❌ Failed to append messages: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to append messages",
		})
	}

	log.Printf("✅ %d message(s) appended to conversation %s for user %s", len(req.Messages), conversationID, userID)
	return c.JSON(conv)
}

// Delete removes a conversation
// DELETE /api/conversations/:id
func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}

	err := h.service.Delete(c.Context(), userID, conversationID)
	if err != nil {
		if err.Error() == "conversation not found" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Conversation not found",
			})
		}
		log.Printf("❌ Failed to delete conversation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete conversation",
		})
	}

	log.Printf("✅ Conversation %s deleted for user %s", conversationID, userID)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Conversation deleted",
	})
}
