package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"distill/internal/analytics"
	"distill/internal/distill"
	"distill/internal/models"
)

func intp(n int) *int {
	return &n
}

// Mock user middleware for testing
func mockAuthMiddleware(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("workspace_id", "")
		return c.Next()
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var payload []byte
	var err error
	if str, ok := body.(string); ok {
		payload = []byte(str)
	} else if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	respBody, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	json.Unmarshal(respBody, &result)
	return resp.StatusCode, result
}

func TestConversationHandler_Capture_Validation(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		body           interface{}
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "missing user ID",
			userID:         "",
			body:           models.CaptureRequest{ID: "conv-1", Source: models.SourceChatGPT},
			expectedStatus: fiber.StatusUnauthorized,
			expectedError:  "Authentication required",
		},
		{
			name:           "empty conversation ID",
			userID:         "user-123",
			body:           models.CaptureRequest{ID: "", Source: models.SourceChatGPT},
			expectedStatus: fiber.StatusBadRequest,
			expectedError:  "Conversation ID is required",
		},
		{
			name:           "no messages",
			userID:         "user-123",
			body:           models.CaptureRequest{ID: "conv-1", Source: models.SourceChatGPT},
			expectedStatus: fiber.StatusBadRequest,
			expectedError:  "Messages are required",
		},
		{
			name:           "invalid JSON body",
			userID:         "user-123",
			body:           "not json",
			expectedStatus: fiber.StatusBadRequest,
			expectedError:  "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(mockAuthMiddleware(tt.userID))

			// Nil service: validation must reject before any service call
			handler := &ConversationHandler{service: nil}
			app.Post("/conversations", handler.Capture)

			status, result := doJSON(t, app, "POST", "/conversations", tt.body)

			if status != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, status)
			}
			if result["error"] != tt.expectedError {
				t.Errorf("Expected error %q, got %v", tt.expectedError, result["error"])
			}
		})
	}
}

func TestConversationHandler_Get_RequiresAuth(t *testing.T) {
	app := fiber.New()
	app.Use(mockAuthMiddleware(""))

	handler := &ConversationHandler{service: nil}
	app.Get("/conversations/:id", handler.Get)

	status, result := doJSON(t, app, "GET", "/conversations/conv-123", nil)

	if status != fiber.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", fiber.StatusUnauthorized, status)
	}
	if result["error"] != "Authentication required" {
		t.Errorf("Expected auth error, got %v", result["error"])
	}
}

// The chat_captured payload the capture handler emits must satisfy the event
// schema, with and without extension-supplied metadata.
func TestCaptureEventProperties(t *testing.T) {
	conv := &models.Conversation{
		Source:      models.SourceClaude,
		PrivacyMode: models.PrivacyFullChat,
		Messages: []models.ConversationMessage{
			{ID: "m1", Role: models.RoleUser, Content: "Explain CSP headers."},
			{ID: "m2", Role: models.RoleAssistant, Content: "CSP restricts resource origins."},
		},
		Metadata: &models.ConversationMetadata{TokenCount: 1234},
	}

	raw := captureEventProperties(conv)
	event, verr := analytics.Validate(models.EventChatCaptured, raw, analytics.BaseContext{UserID: "user-1"})
	if verr != nil {
		t.Fatalf("Server-built chat_captured payload rejected: %v", verr)
	}

	props, ok := event.Properties.(models.ChatCapturedProperties)
	if !ok {
		t.Fatalf("Expected ChatCapturedProperties, got %T", event.Properties)
	}
	if props.Platform != models.SourceClaude || props.PrivacyMode != models.PrivacyFullChat {
		t.Errorf("Unexpected platform/privacyMode: %+v", props)
	}
	if props.TokenCount != 1234 || props.MessageCount != 2 {
		t.Errorf("Unexpected counts: %+v", props)
	}

	// No metadata from the extension: tokenCount falls back to 0 and the
	// payload still validates.
	conv.Metadata = nil
	raw = captureEventProperties(conv)
	if _, verr := analytics.Validate(models.EventChatCaptured, raw, analytics.BaseContext{UserID: "user-1"}); verr != nil {
		t.Fatalf("Metadata-free chat_captured payload rejected: %v", verr)
	}
}

func TestDistillHandler_Validation(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		body           interface{}
		expectedStatus int
	}{
		{
			name:           "missing user ID",
			userID:         "",
			body:           models.DistillRequest{},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "no messages",
			userID:         "user-123",
			body:           models.DistillRequest{},
			expectedStatus: fiber.StatusBadRequest,
		},
		{
			name:   "negative max length",
			userID: "user-123",
			body: models.DistillRequest{
				Messages: []models.ConversationMessage{
					{Role: models.RoleUser, Content: "Explain how HTTP caching works."},
				},
				Options: &models.DistillOptions{MaxLength: intp(-5)},
			},
			expectedStatus: fiber.StatusBadRequest,
		},
		{
			name:           "invalid JSON body",
			userID:         "user-123",
			body:           "not json",
			expectedStatus: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(mockAuthMiddleware(tt.userID))

			handler := &DistillHandler{engine: distill.NewEngine(distill.Lexicon{})}
			app.Post("/distill", handler.Distill)

			status, _ := doJSON(t, app, "POST", "/distill", tt.body)

			if status != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, status)
			}
		})
	}
}

func TestPromptHandler_Run_Validation(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		body           interface{}
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "missing user ID",
			userID:         "",
			body:           models.RunPromptRequest{Platform: "clipboard"},
			expectedStatus: fiber.StatusUnauthorized,
			expectedError:  "Authentication required",
		},
		{
			name:           "unrecognized platform",
			userID:         "user-123",
			body:           models.RunPromptRequest{Platform: "telegram"},
			expectedStatus: fiber.StatusBadRequest,
			expectedError:  "Unrecognized run platform",
		},
		{
			name:           "empty platform",
			userID:         "user-123",
			body:           models.RunPromptRequest{},
			expectedStatus: fiber.StatusBadRequest,
			expectedError:  "Unrecognized run platform",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(mockAuthMiddleware(tt.userID))

			handler := &PromptHandler{service: nil}
			app.Post("/prompts/:id/run", handler.Run)

			status, result := doJSON(t, app, "POST", "/prompts/p-1/run", tt.body)

			if status != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, status)
			}
			if result["error"] != tt.expectedError {
				t.Errorf("Expected error %q, got %v", tt.expectedError, result["error"])
			}
		})
	}
}

func TestEventHandler_Ingest_RejectsInvalidEvents(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{
			name: "unknown event type",
			body: models.IngestEventRequest{
				Event:      "user_logged_in",
				Properties: map[string]interface{}{},
			},
			expectedStatus: fiber.StatusUnprocessableEntity,
		},
		{
			name: "missing required property",
			body: models.IngestEventRequest{
				Event:      models.EventCoachUsed,
				Properties: map[string]interface{}{"accepted": true},
			},
			expectedStatus: fiber.StatusUnprocessableEntity,
		},
		{
			name: "wrong property type",
			body: models.IngestEventRequest{
				Event: models.EventCoachUsed,
				Properties: map[string]interface{}{
					"suggestionCount": "three",
					"accepted":        true,
				},
			},
			expectedStatus: fiber.StatusUnprocessableEntity,
		},
		{
			name:           "invalid JSON body",
			body:           "not json",
			expectedStatus: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(mockAuthMiddleware("user-123"))

			// Nil service: every test case must be rejected before storage
			handler := &EventHandler{service: nil}
			app.Post("/events", handler.Ingest)

			status, result := doJSON(t, app, "POST", "/events", tt.body)

			if status != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d (%v)", tt.expectedStatus, status, result)
			}
		})
	}
}

func TestEventHandler_IngestBatch_SizeLimits(t *testing.T) {
	app := fiber.New()
	app.Use(mockAuthMiddleware("user-123"))

	handler := &EventHandler{service: nil}
	app.Post("/events/batch", handler.IngestBatch)

	t.Run("empty batch", func(t *testing.T) {
		status, result := doJSON(t, app, "POST", "/events/batch", IngestBatchRequest{})
		if status != fiber.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", fiber.StatusBadRequest, status)
		}
		if result["error"] != "No events provided" {
			t.Errorf("Unexpected error: %v", result["error"])
		}
	})

	t.Run("oversized batch", func(t *testing.T) {
		events := make([]models.IngestEventRequest, maxBatchSize+1)
		for i := range events {
			events[i] = models.IngestEventRequest{Event: models.EventPageViewed}
		}
		status, _ := doJSON(t, app, "POST", "/events/batch", IngestBatchRequest{Events: events})
		if status != fiber.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", fiber.StatusBadRequest, status)
		}
	})
}

func TestDashboardHandler_WindowValidation(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{
			name:           "bad start timestamp",
			path:           "/dashboard?start=yesterday",
			expectedStatus: fiber.StatusBadRequest,
		},
		{
			name:           "bad end timestamp",
			path:           "/dashboard?end=32-13-2026",
			expectedStatus: fiber.StatusBadRequest,
		},
		{
			name:           "end before start",
			path:           "/dashboard?start=2026-03-31T00:00:00Z&end=2026-03-01T00:00:00Z",
			expectedStatus: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(mockAuthMiddleware("user-123"))

			handler := &DashboardHandler{service: nil}
			app.Get("/dashboard", handler.GetMetrics)

			status, _ := doJSON(t, app, "GET", tt.path, nil)

			if status != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, status)
			}
		})
	}
}
