package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"

	"distill/internal/analytics"
	"distill/internal/distill"
	"distill/internal/models"
	"distill/internal/services"
)

// Platforms a prompt can be run against
var runPlatforms = map[string]bool{
	models.SourceChatGPT: true,
	models.SourceClaude:  true,
	models.SourceGemini:  true,
	models.SourceCopilot: true,
	"clipboard":          true,
}

// PromptHandler handles HTTP requests for the prompt library
type PromptHandler struct {
	service *services.PromptService
	events  *services.EventService
}

// NewPromptHandler creates a new prompt handler
func NewPromptHandler(service *services.PromptService, events *services.EventService) *PromptHandler {
	return &PromptHandler{
		service: service,
		events:  events,
	}
}

// List returns a paginated list of the user's prompts
// GET /api/prompts?page=1&page_size=20
func (h *PromptHandler) List(c *fiber.Ctx) error {
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
		log.Printf("❌ Failed to list prompts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list prompts",
		})
	}

	return c.JSON(result)
}

// ListPublic returns shared prompts ranked by usage
// GET /api/prompts/public?page=1&page_size=20
func (h *PromptHandler) ListPublic(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	result, err := h.service.ListPublic(c.Context(), page, pageSize)
	if err != nil {
		log.Printf("❌ Failed to list public prompts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list public prompts",
		})
	}

	return c.JSON(result)
}

// Get retrieves a single prompt (own or public)
// GET /api/prompts/:id
func (h *PromptHandler) Get(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	promptID := c.Params("id")
	if promptID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Prompt ID is required",
		})
	}

	prompt, err := h.service.Get(c.Context(), userID, promptID)
	if err != nil {
		if err.Error() == "prompt not found" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Prompt not found",
			})
		}
		log.Printf("❌ Failed to get prompt: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get prompt",
		})
	}

	return c.JSON(prompt)
}

// UpdatePromptRequest is the partial update payload
type UpdatePromptRequest struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	IsPublic *bool     `json:"isPublic,omitempty"`
}

// Update edits a prompt's title, content, tags or visibility
// PUT /api/prompts/:id
func (h *PromptHandler) Update(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	promptID := c.Params("id")
	if promptID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Prompt ID is required",
		})
	}

	var req UpdatePromptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updates := bson.M{}
	editType := ""
	if req.Title != nil {
		updates["title"] = *req.Title
		editType = "title"
	}
	if req.Tags != nil {
		updates["tags"] = *req.Tags
		editType = "tags"
	}
	if req.Content != nil {
		updates["content"] = *req.Content
		editType = "content"
		// Content edits can add or remove variables.
		variables := distill.DetectVariables(*req.Content)
		updates["hasVariables"] = len(variables) > 0
		updates["variableCount"] = len(variables)
	}
	if req.IsPublic != nil {
		updates["isPublic"] = *req.IsPublic
	}

	prompt, err := h.service.Update(c.Context(), userID, promptID, updates)
	if err != nil {
		switch err.Error() {
		case "prompt not found":
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Prompt not found",
			})
		case "no updatable fields provided":
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No updatable fields provided",
			})
		}
		log.Printf("❌ Failed to update prompt: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update prompt",
		})
	}

	if editType != "" {
		h.recordEvent(c, models.EventPromptEdited, map[string]interface{}{
			"promptId": promptID,
			"editType": editType,
		})
	}

	log.Printf("✅ Prompt %s updated for user %s", promptID, userID)
	return c.JSON(prompt)
}

// Run records one use of a prompt on a target platform
// POST /api/prompts/:id/run
func (h *PromptHandler) Run(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	promptID := c.Params("id")
	if promptID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Prompt ID is required",
		})
	}

	var req models.RunPromptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if !runPlatforms[req.Platform] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unrecognized run platform",
		})
	}

	prompt, err := h.service.RecordRun(c.Context(), userID, promptID)
	if err != nil {
		if err.Error() == "prompt not found" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Prompt not found",
			})
		}
		log.Printf("❌ Failed to record run: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record run",
		})
	}

	h.recordEvent(c, models.EventPromptRun, map[string]interface{}{
		"platform":      req.Platform,
		"variableCount": req.VariableCount,
		"promptId":      promptID,
		"isShared":      prompt.UserID != userID,
	})

	return c.JSON(fiber.Map{
		"success":    true,
		"usageCount": prompt.UsageCount,
	})
}

// Rate sets the owner's rating for a prompt
// POST /api/prompts/:id/rating
func (h *PromptHandler) Rate(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	promptID := c.Params("id")
	if promptID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Prompt ID is required",
		})
	}

	var req models.RatePromptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.service.Rate(c.Context(), userID, promptID, req.Rating); err != nil {
		switch err.Error() {
		case "prompt not found":
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Prompt not found",
			})
		}
		if req.Rating < 0 || req.Rating > 5 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Rating must be between 0 and 5",
			})
		}
		log.Printf("❌ Failed to rate prompt: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rate prompt",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// Delete removes a prompt
// DELETE /api/prompts/:id
func (h *PromptHandler) Delete(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	promptID := c.Params("id")
	if promptID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Prompt ID is required",
		})
	}

	err := h.service.Delete(c.Context(), userID, promptID)
	if err != nil {
		if err.Error() == "prompt not found" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Prompt not found",
			})
		}
		log.Printf("❌ Failed to delete prompt: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete prompt",
		})
	}

	log.Printf("✅ Prompt %s deleted for user %s", promptID, userID)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Prompt deleted",
	})
}

// recordEvent validates and appends an analytics event off the request
// context. Analytics failures never surface to the client.
func (h *PromptHandler) recordEvent(c *fiber.Ctx, eventType string, raw map[string]interface{}) {
	if h.events == nil {
		return
	}

	userID, _ := c.Locals("user_id").(string)
	workspaceID, _ := c.Locals("workspace_id").(string)

	event, verr := analytics.Validate(eventType, raw, analytics.BaseContext{
		Timestamp:   time.Now().UTC(),
		SessionID:   c.Get("X-Session-Id"),
		UserID:      userID,
		WorkspaceID: workspaceID,
	})
	if verr != nil {
		log.Printf("⚠️ %s event rejected: %v", eventType, verr)
		return
	}
	if err := h.events.Append(c.Context(), event, raw); err != nil {
		log.Printf("⚠️ Failed to record %s event: %v", eventType, err)
	}
}
