package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"distill/internal/models"
	"distill/internal/services"
)

// DashboardHandler serves aggregated workspace metrics
type DashboardHandler struct {
	service *services.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// GetMetrics returns dashboard metrics for the caller's workspace
// GET /api/dashboard/metrics?start=2026-03-01T00:00:00Z&end=2026-03-31T23:59:59Z
func (h *DashboardHandler) GetMetrics(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
	workspaceID, _ := c.Locals("workspace_id").(string)

	window, err := parseWindow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	metrics, err := h.service.GetMetrics(c.Context(), workspaceID, window)
	if err != nil {
		log.Printf("❌ Failed to compute dashboard metrics: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute dashboard metrics",
		})
	}

	return c.JSON(metrics)
}

// parseWindow reads the start/end query parameters. Default window is the
// trailing 30 days.
func parseWindow(c *fiber.Ctx) (models.TimeWindow, error) {
	now := time.Now().UTC()
	window := models.TimeWindow{
		Start: now.AddDate(0, 0, -30),
		End:   now,
	}

	if v := c.Query("start"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return models.TimeWindow{}, fiber.NewError(fiber.StatusBadRequest, "start must be RFC3339")
		}
		window.Start = parsed.UTC()
	}
	if v := c.Query("end"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return models.TimeWindow{}, fiber.NewError(fiber.StatusBadRequest, "end must be RFC3339")
		}
		window.End = parsed.UTC()
	}

	if window.End.Before(window.Start) {
		return models.TimeWindow{}, fiber.NewError(fiber.StatusBadRequest, "end precedes start")
	}
	return window, nil
}
