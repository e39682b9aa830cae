package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"distill/internal/analytics"
	"distill/internal/distill"
	"distill/internal/models"
	"distill/internal/services"
)

// DistillHandler turns captured conversations into reusable prompts
type DistillHandler struct {
	engine           *distill.Engine
	conversations    *services.ConversationService
	prompts          *services.PromptService
	events           *services.EventService
	limiter          *services.UsageLimiterService
	defaultMaxLength int
}

// NewDistillHandler creates a new distillation handler
func NewDistillHandler(
	engine *distill.Engine,
	conversations *services.ConversationService,
	prompts *services.PromptService,
	events *services.EventService,
	limiter *services.UsageLimiterService,
	defaultMaxLength int,
) *DistillHandler {
	return &DistillHandler{
		engine:           engine,
		conversations:    conversations,
		prompts:          prompts,
		events:           events,
		limiter:          limiter,
		defaultMaxLength: defaultMaxLength,
	}
}

// Distill runs the distillation engine over a conversation and saves the
// resulting prompt. Messages may be supplied inline, or looked up by
// conversation ID when omitted.
// POST /api/distill
func (h *DistillHandler) Distill(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
	workspaceID, _ := c.Locals("workspace_id").(string)

	var req models.DistillRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Messages) == 0 && req.ConversationID != "" && h.conversations != nil {
		conv, err := h.conversations.Get(c.Context(), userID, req.ConversationID)
		if err != nil {
			if err.Error() == "conversation not found" {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Conversation not found",
				})
			}
			log.Printf("❌ Failed to load conversation for distillation: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load conversation",
			})
		}
		req.Messages = conv.Messages
	}

	if h.limiter != nil && !h.limiter.Allow(c.Context(), userID, services.QuotaDistill) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Daily distillation limit reached",
		})
	}

	if req.Options == nil {
		req.Options = &models.DistillOptions{}
	}
	if req.Options.MaxLength == nil && h.defaultMaxLength > 0 {
		req.Options.MaxLength = &h.defaultMaxLength
	}

	start := time.Now()
	result, derr := h.engine.Distill(req)
	if derr != nil {
		if m := services.GetMetrics(); m != nil {
			m.RecordDistillError(derr.Kind.String())
		}
		switch derr.Kind {
		case distill.ErrorKindEmptyInput, distill.ErrorKindInvalidOptions:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": derr.Message,
			})
		case distill.ErrorKindDegenerateResult:
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": derr.Message,
			})
		}
		log.Printf("❌ Distillation failed: %v", derr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Distillation failed",
		})
	}

	if m := services.GetMetrics(); m != nil {
		m.RecordDistill(time.Since(start).Seconds())
		m.RecordCompressionRatio(result.Metadata.CompressionRatio)
	}

	variables := distill.DetectVariables(result.Content)

	prompt, err := h.prompts.SaveFromDistillation(c.Context(), userID, workspaceID, result, len(variables) > 0, len(variables))
	if err != nil {
		log.Printf("❌ Failed to save distilled prompt: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save prompt",
		})
	}

	h.recordPromptCreated(c, prompt)

	log.Printf("✅ Distilled conversation %s into prompt %s for user %s (ratio: %.2f)",
		req.ConversationID, prompt.PromptID, userID, result.Metadata.CompressionRatio)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"prompt": prompt,
		"result": result,
	})
}

// recordPromptCreated appends the prompt_created analytics event. Failures
// are logged only; analytics never blocks the product path.
func (h *DistillHandler) recordPromptCreated(c *fiber.Ctx, prompt *models.Prompt) {
	if h.events == nil {
		return
	}

	raw := map[string]interface{}{
		"source":        prompt.Source,
		"hasVariables":  prompt.HasVariables,
		"variableCount": prompt.VariableCount,
		"tagCount":      len(prompt.Tags),
	}
	base := analytics.BaseContext{
		Timestamp:   time.Now().UTC(),
		SessionID:   c.Get("X-Session-Id"),
		UserID:      prompt.UserID,
		WorkspaceID: prompt.WorkspaceID,
	}

	event, verr := analytics.Validate(models.EventPromptCreated, raw, base)
	if verr != nil {
		log.Printf("⚠️ prompt_created event rejected: %v", verr)
		return
	}
	if err := h.events.Append(c.Context(), event, raw); err != nil {
		log.Printf("⚠️ Failed to record prompt_created event: %v", err)
	}
}
