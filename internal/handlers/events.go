package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"distill/internal/analytics"
	"distill/internal/models"
	"distill/internal/ratelimit"
	"distill/internal/services"
)

// Max events accepted in one batch
const maxBatchSize = 50

// EventHandler ingests analytics events from clients
type EventHandler struct {
	service *services.EventService
	limiter *ratelimit.RateLimiter
}

// NewEventHandler creates a new event handler
func NewEventHandler(service *services.EventService, limiter *ratelimit.RateLimiter) *EventHandler {
	return &EventHandler{
		service: service,
		limiter: limiter,
	}
}

// Ingest validates and stores one analytics event. Anonymous pre-signup
// events are accepted with a session ID only.
// POST /api/events
func (h *EventHandler) Ingest(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	workspaceID, _ := c.Locals("workspace_id").(string)

	var req models.IngestEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if h.limiter != nil {
		key := userID
		if key == "" {
			key = "session:" + req.SessionID
		}
		if !h.limiter.Allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Event rate limit reached",
			})
		}
	}

	event, raw, verr := h.validate(&req, userID, workspaceID)
	if verr != nil {
		if m := services.GetMetrics(); m != nil {
			m.RecordEventRejected(verr.Code)
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":     "Event failed validation",
			"violation": verr,
		})
	}

	if err := h.service.Append(c.Context(), event, raw); err != nil {
		log.Printf("❌ Failed to store event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store event",
		})
	}

	if m := services.GetMetrics(); m != nil {
		m.RecordEventValidated()
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
}

// IngestBatchRequest carries multiple events in one call
type IngestBatchRequest struct {
	Events []models.IngestEventRequest `json:"events"`
}

// IngestBatch validates and stores a batch of events. The batch is not
// atomic: valid events are stored, invalid ones reported per-index.
// POST /api/events/batch
func (h *EventHandler) IngestBatch(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	workspaceID, _ := c.Locals("workspace_id").(string)

	var req IngestBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Events) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No events provided",
		})
	}
	if len(req.Events) > maxBatchSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Maximum 50 events per batch",
		})
	}

	if h.limiter != nil {
		key := userID
		if key == "" {
			key = "session:" + req.Events[0].SessionID
		}
		if !h.limiter.Allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Event rate limit reached",
			})
		}
	}

	accepted := 0
	violations := make([]fiber.Map, 0)
	for i := range req.Events {
		event, raw, verr := h.validate(&req.Events[i], userID, workspaceID)
		if verr != nil {
			if m := services.GetMetrics(); m != nil {
				m.RecordEventRejected(verr.Code)
			}
			violations = append(violations, fiber.Map{
				"index":     i,
				"violation": verr,
			})
			continue
		}

		if err := h.service.Append(c.Context(), event, raw); err != nil {
			log.Printf("❌ Failed to store event %d in batch: %v", i, err)
			violations = append(violations, fiber.Map{
				"index": i,
				"error": "storage failure",
			})
			continue
		}

		if m := services.GetMetrics(); m != nil {
			m.RecordEventValidated()
		}
		accepted++
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted":   accepted,
		"rejected":   len(violations),
		"violations": violations,
	})
}

// validate runs one ingest payload through the event validator. The server
// clock is authoritative when the client sends no (or a bad) timestamp.
func (h *EventHandler) validate(req *models.IngestEventRequest, userID, workspaceID string) (*models.AnalyticsEvent, map[string]interface{}, *analytics.ValidationError) {
	timestamp := time.Now().UTC()
	if req.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			timestamp = parsed.UTC()
		}
	}

	raw := req.Properties
	if raw == nil {
		raw = map[string]interface{}{}
	}

	event, verr := analytics.Validate(req.Event, raw, analytics.BaseContext{
		Timestamp:   timestamp,
		SessionID:   req.SessionID,
		UserID:      userID,
		WorkspaceID: workspaceID,
	})
	if verr != nil {
		return nil, nil, verr
	}
	return event, raw, nil
}
