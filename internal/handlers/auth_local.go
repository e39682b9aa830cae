package handlers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"distill/internal/analytics"
	"distill/internal/models"
	"distill/internal/services"
)

// AuthHandler handles account registration and login
type AuthHandler struct {
	users  *services.UserService
	events *services.EventService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *services.UserService, events *services.EventService) *AuthHandler {
	return &AuthHandler{
		users:  users,
		events: events,
	}
}

// Register creates a new account and returns a token pair
// POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := h.users.Register(c.Context(), &req)
	if err != nil {
		errMsg := err.Error()
		if errMsg == "email already registered" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Email already registered",
			})
		}
		if strings.Contains(errMsg, "password") || strings.Contains(errMsg, "email") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": errMsg,
			})
		}
		log.Printf("❌ Failed to register user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to register",
		})
	}

	resp, err := h.users.IssueTokens(user)
	if err != nil {
		log.Printf("❌ Failed to issue tokens: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to issue tokens",
		})
	}

	h.recordSignup(c, user, req.Referrer)

	log.Printf("✅ User registered: %s", user.UserID)
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login authenticates an account and returns a token pair
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := h.users.Authenticate(c.Context(), req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	resp, err := h.users.IssueTokens(user)
	if err != nil {
		log.Printf("❌ Failed to issue tokens: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to issue tokens",
		})
	}

	return c.JSON(resp)
}

// Refresh exchanges a refresh token for a fresh token pair
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req models.RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Refresh token is required",
		})
	}

	resp, err := h.users.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid refresh token",
		})
	}

	return c.JSON(resp)
}

// Me returns the authenticated account
// GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	user, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		if err.Error() == "user not found" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		log.Printf("❌ Failed to get user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get user",
		})
	}

	return c.JSON(user)
}

// recordSignup appends the user_signed_up analytics event. Analytics never
// blocks registration.
func (h *AuthHandler) recordSignup(c *fiber.Ctx, user *models.User, referrer string) {
	if h.events == nil {
		return
	}

	raw := map[string]interface{}{
		"method":   "email",
		"referrer": referrer,
	}
	event, verr := analytics.Validate(models.EventUserSignedUp, raw, analytics.BaseContext{
		Timestamp:   time.Now().UTC(),
		SessionID:   c.Get("X-Session-Id"),
		UserID:      user.UserID,
		WorkspaceID: user.WorkspaceID,
	})
	if verr != nil {
		log.Printf("⚠️ user_signed_up event rejected: %v", verr)
		return
	}
	if err := h.events.Append(c.Context(), event, raw); err != nil {
		log.Printf("⚠️ Failed to record user_signed_up event: %v", err)
	}
}
