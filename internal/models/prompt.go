package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Prompt creation sources
const (
	PromptSourceCapture = "capture"
	PromptSourceManual  = "manual"
	PromptSourceImport  = "import"
)

// ValidPromptSource reports whether src is a recognized creation source.
func ValidPromptSource(src string) bool {
	switch src {
	case PromptSourceCapture, PromptSourceManual, PromptSourceImport:
		return true
	}
	return false
}

// DistillOptions configures a distillation run. The zero value asks for a
// plain length-oriented distillation with no cap.
type DistillOptions struct {
	Model              string `json:"model,omitempty"`     // Target model hint, carried into metadata
	MaxLength          *int   `json:"maxLength,omitempty"` // Rune cap on distilled content; nil means uncapped
	PreserveContext    bool   `json:"preserveContext,omitempty"`
	ExtractTechniques  bool   `json:"extractTechniques,omitempty"`
	GenerateVariations bool   `json:"generateVariations,omitempty"`
}

// DistillRequest is the input to the distillation engine.
type DistillRequest struct {
	ConversationID string                `json:"conversationId,omitempty"` // Traceability only, never re-validated here
	Messages       []ConversationMessage `json:"messages"`
	Options        *DistillOptions       `json:"options,omitempty"`
}

// DistillMetadata records the measurable outcome of a distillation.
// CompressionRatio is always recomputed from the final content, never stored
// stale. Lengths are rune counts.
type DistillMetadata struct {
	OriginalLength   int     `bson:"originalLength" json:"originalLength"`
	DistilledLength  int     `bson:"distilledLength" json:"distilledLength"`
	CompressionRatio float64 `bson:"compressionRatio" json:"compressionRatio"`
	QualityScore     float64 `bson:"qualityScore" json:"qualityScore"` // In [0,1]
	Truncated        bool    `bson:"truncated,omitempty" json:"truncated,omitempty"`
	Model            string  `bson:"model,omitempty" json:"model,omitempty"`
	ConversationID   string  `bson:"conversationId,omitempty" json:"conversationId,omitempty"`
}

// DistillResult is the output of a successful distillation.
type DistillResult struct {
	PromptID   string          `json:"promptId"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Tags       []string        `json:"tags"`
	Metadata   DistillMetadata `json:"metadata"`
	Variations []string        `json:"variations,omitempty"`
}

// Prompt is the persisted form of a distilled (or manually created) prompt.
// UsageCount only moves through RecordRun's atomic increment.
type Prompt struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	PromptID      string             `bson:"promptId" json:"id"`
	UserID        string             `bson:"userId" json:"userId"`
	WorkspaceID   string             `bson:"workspaceId,omitempty" json:"workspaceId,omitempty"`
	Title         string             `bson:"title" json:"title"`
	Content       string             `bson:"content" json:"content"`
	Tags          []string           `bson:"tags" json:"tags"`
	Metadata      DistillMetadata    `bson:"metadata" json:"metadata"`
	Variations    []string           `bson:"variations,omitempty" json:"variations,omitempty"`
	Source        string             `bson:"source" json:"source"` // "capture", "manual", "import"
	HasVariables  bool               `bson:"hasVariables" json:"hasVariables"`
	VariableCount int                `bson:"variableCount" json:"variableCount"`
	IsPublic      bool               `bson:"isPublic" json:"isPublic"`
	UsageCount    int64              `bson:"usageCount" json:"usageCount"`
	Rating        *float64           `bson:"rating,omitempty" json:"rating,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RunPromptRequest records one use of a prompt on a target platform.
type RunPromptRequest struct {
	Platform      string `json:"platform"` // Four chat platforms or "clipboard"
	VariableCount int    `json:"variableCount"`
}

// RatePromptRequest sets the owner's rating for a prompt.
type RatePromptRequest struct {
	Rating float64 `json:"rating"` // 0-5
}

// PromptListItem is a summary of a prompt for listing (no content body).
type PromptListItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Tags         []string  `json:"tags"`
	Source       string    `json:"source"`
	IsPublic     bool      `json:"isPublic"`
	UsageCount   int64     `json:"usageCount"`
	Rating       *float64  `json:"rating,omitempty"`
	QualityScore float64   `json:"qualityScore"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PromptListResponse is the paginated response for listing prompts.
type PromptListResponse struct {
	Prompts    []PromptListItem `json:"prompts"`
	TotalCount int64            `json:"totalCount"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	HasMore    bool             `json:"hasMore"`
}

// ToListItem converts a Prompt to its listing summary.
func (p *Prompt) ToListItem() PromptListItem {
	return PromptListItem{
		ID:           p.PromptID,
		Title:        p.Title,
		Tags:         p.Tags,
		Source:       p.Source,
		IsPublic:     p.IsPublic,
		UsageCount:   p.UsageCount,
		Rating:       p.Rating,
		QualityScore: p.Metadata.QualityScore,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
