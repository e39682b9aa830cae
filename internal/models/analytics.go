package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Analytics event types. This is a closed set: the validator rejects
// anything else, and every type pins its own property shape below.
const (
	EventUserSignedUp       = "user_signed_up"
	EventWorkspaceCreated   = "workspace_created"
	EventExtensionInstalled = "extension_installed"
	EventChatCaptured       = "chat_captured"
	EventPromptCreated      = "prompt_created"
	EventPromptRun          = "prompt_run"
	EventPromptEdited       = "prompt_edited"
	EventCoachUsed          = "coach_used"
	EventMemberInvited      = "member_invited"
	EventSearchPerformed    = "search_performed"
	EventPageViewed         = "page_viewed"
	EventFeatureUsed        = "feature_used"
)

// Privacy modes for chat capture
const (
	PrivacyPromptOnly = "prompt_only"
	PrivacyFullChat   = "full_chat"
)

// EventTypes lists every recognized event type, in a stable order.
var EventTypes = []string{
	EventUserSignedUp,
	EventWorkspaceCreated,
	EventExtensionInstalled,
	EventChatCaptured,
	EventPromptCreated,
	EventPromptRun,
	EventPromptEdited,
	EventCoachUsed,
	EventMemberInvited,
	EventSearchPerformed,
	EventPageViewed,
	EventFeatureUsed,
}

// EventProperties is the per-event property variant. Exactly one concrete
// type exists per event type; EventType returns the tag it belongs to.
type EventProperties interface {
	EventType() string
}

// UserSignedUpProperties - properties for "user_signed_up"
type UserSignedUpProperties struct {
	Method   string `bson:"method" json:"method"` // "google", "github", "email"
	Referrer string `bson:"referrer" json:"referrer"`
}

func (UserSignedUpProperties) EventType() string { return EventUserSignedUp }

// WorkspaceCreatedProperties - properties for "workspace_created"
type WorkspaceCreatedProperties struct {
	TeamSize int    `bson:"teamSize" json:"teamSize"`
	Source   string `bson:"source" json:"source"` // "onboarding", "settings"
}

func (WorkspaceCreatedProperties) EventType() string { return EventWorkspaceCreated }

// ExtensionInstalledProperties - properties for "extension_installed"
type ExtensionInstalledProperties struct {
	Browser string `bson:"browser" json:"browser"` // "chrome", "firefox", "edge"
	Version string `bson:"version" json:"version"`
}

func (ExtensionInstalledProperties) EventType() string { return EventExtensionInstalled }

// ChatCapturedProperties - properties for "chat_captured"
type ChatCapturedProperties struct {
	Platform     string `bson:"platform" json:"platform"`       // Capture source platform
	PrivacyMode  string `bson:"privacyMode" json:"privacyMode"` // "prompt_only", "full_chat"
	TokenCount   int    `bson:"tokenCount" json:"tokenCount"`
	MessageCount int    `bson:"messageCount" json:"messageCount"`
}

func (ChatCapturedProperties) EventType() string { return EventChatCaptured }

// PromptCreatedProperties - properties for "prompt_created".
// VariableCount must be 0 when HasVariables is false.
type PromptCreatedProperties struct {
	Source        string `bson:"source" json:"source"` // "capture", "manual", "import"
	HasVariables  bool   `bson:"hasVariables" json:"hasVariables"`
	VariableCount int    `bson:"variableCount" json:"variableCount"`
	TagCount      int    `bson:"tagCount" json:"tagCount"`
}

func (PromptCreatedProperties) EventType() string { return EventPromptCreated }

// PromptRunProperties - properties for "prompt_run"
type PromptRunProperties struct {
	Platform      string `bson:"platform" json:"platform"` // Four chat platforms or "clipboard"
	VariableCount int    `bson:"variableCount" json:"variableCount"`
	PromptID      string `bson:"promptId" json:"promptId"`
	IsShared      bool   `bson:"isShared" json:"isShared"`
}

func (PromptRunProperties) EventType() string { return EventPromptRun }

// PromptEditedProperties - properties for "prompt_edited"
type PromptEditedProperties struct {
	PromptID string `bson:"promptId" json:"promptId"`
	EditType string `bson:"editType" json:"editType"` // "content", "title", "tags", "variables"
}

func (PromptEditedProperties) EventType() string { return EventPromptEdited }

// CoachUsedProperties - properties for "coach_used"
type CoachUsedProperties struct {
	SuggestionCount int  `bson:"suggestionCount" json:"suggestionCount"`
	Accepted        bool `bson:"accepted" json:"accepted"`
}

func (CoachUsedProperties) EventType() string { return EventCoachUsed }

// MemberInvitedProperties - properties for "member_invited"
type MemberInvitedProperties struct {
	Role          string `bson:"role" json:"role"` // "admin", "member"
	WorkspaceSize int    `bson:"workspaceSize" json:"workspaceSize"`
}

func (MemberInvitedProperties) EventType() string { return EventMemberInvited }

// SearchPerformedProperties - properties for "search_performed"
type SearchPerformedProperties struct {
	QueryLength  int    `bson:"queryLength" json:"queryLength"`
	ResultsCount int    `bson:"resultsCount" json:"resultsCount"`
	SearchType   string `bson:"searchType" json:"searchType"` // "text", "semantic"
	HasFilters   bool   `bson:"hasFilters" json:"hasFilters"`
}

func (SearchPerformedProperties) EventType() string { return EventSearchPerformed }

// PageViewedProperties - properties for "page_viewed".
// Duration is optional (seconds); engagement averaging skips events without it.
type PageViewedProperties struct {
	Page     string   `bson:"page" json:"page"`
	Duration *float64 `bson:"duration,omitempty" json:"duration,omitempty"`
}

func (PageViewedProperties) EventType() string { return EventPageViewed }

// FeatureUsedProperties - properties for "feature_used"
type FeatureUsedProperties struct {
	Feature string `bson:"feature" json:"feature"`
	Context string `bson:"context,omitempty" json:"context,omitempty"`
}

func (FeatureUsedProperties) EventType() string { return EventFeatureUsed }

// AnalyticsEvent is an immutable, validated fact about a user action.
// Properties is pinned to the variant matching Event; Extra preserves
// unrecognized property keys for forward compatibility.
type AnalyticsEvent struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty" json:"-"`
	Event       string                 `bson:"event" json:"event"`
	Timestamp   time.Time              `bson:"timestamp" json:"timestamp"`
	SessionID   string                 `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	UserID      string                 `bson:"userId,omitempty" json:"userId,omitempty"`
	WorkspaceID string                 `bson:"workspaceId,omitempty" json:"workspaceId,omitempty"`
	Properties  EventProperties        `bson:"-" json:"properties"`
	Extra       map[string]interface{} `bson:"extra,omitempty" json:"extra,omitempty"`
}

// IngestEventRequest is the raw ingest payload before validation.
type IngestEventRequest struct {
	Event      string                 `json:"event"`
	Properties map[string]interface{} `json:"properties"`
	Timestamp  string                 `json:"timestamp,omitempty"` // RFC3339; defaults to server time
	SessionID  string                 `json:"sessionId,omitempty"`
}
