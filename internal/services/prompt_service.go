package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"distill/internal/database"
	"distill/internal/models"
)

// PromptService handles persistence for distilled prompts
type PromptService struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

// NewPromptService creates a new prompt service
func NewPromptService(db *database.MongoDB) *PromptService {
	return &PromptService{
		db:         db,
		collection: db.Collection(database.CollectionPrompts),
	}
}

// SaveFromDistillation persists a distillation result as a prompt owned by
// the user. The engine's output is stored verbatim; ownership and source are
// stamped here.
func (s *PromptService) SaveFromDistillation(ctx context.Context, userID, workspaceID string, result *models.DistillResult, hasVariables bool, variableCount int) (*models.Prompt, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	now := time.Now().UTC()
	prompt := &models.Prompt{
		PromptID:      result.PromptID,
		UserID:        userID,
		WorkspaceID:   workspaceID,
		Title:         result.Title,
		Content:       result.Content,
		Tags:          result.Tags,
		Source:        models.PromptSourceCapture,
		Metadata:      result.Metadata,
		Variations:    result.Variations,
		HasVariables:  hasVariables,
		VariableCount: variableCount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := s.collection.InsertOne(ctx, prompt); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("prompt %s already exists", result.PromptID)
		}
		return nil, fmt.Errorf("failed to save prompt: %w", err)
	}

	return prompt, nil
}

// Create stores a manually authored or imported prompt
func (s *PromptService) Create(ctx context.Context, userID, workspaceID string, prompt *models.Prompt) (*models.Prompt, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if prompt.Content == "" {
		return nil, fmt.Errorf("prompt content is required")
	}
	if prompt.Source == "" {
		prompt.Source = models.PromptSourceManual
	}
	if !models.ValidPromptSource(prompt.Source) {
		return nil, fmt.Errorf("unrecognized prompt source %q", prompt.Source)
	}

	now := time.Now().UTC()
	prompt.UserID = userID
	prompt.WorkspaceID = workspaceID
	prompt.CreatedAt = now
	prompt.UpdatedAt = now
	if prompt.PromptID == "" {
		return nil, fmt.Errorf("prompt ID is required")
	}

	if _, err := s.collection.InsertOne(ctx, prompt); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("prompt %s already exists", prompt.PromptID)
		}
		return nil, fmt.Errorf("failed to create prompt: %w", err)
	}

	return prompt, nil
}

// Get retrieves a prompt the user can see: their own, or a public one
func (s *PromptService) Get(ctx context.Context, userID, promptID string) (*models.Prompt, error) {
	var prompt models.Prompt
	err := s.collection.FindOne(ctx, bson.M{
		"promptId": promptID,
		"$or": []bson.M{
			{"userId": userID},
			{"isPublic": true},
		},
	}).Decode(&prompt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("prompt not found")
		}
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return &prompt, nil
}

// List returns a page of the user's prompts, most recently updated first
func (s *PromptService) List(ctx context.Context, userID string, page, pageSize int) (*models.PromptListResponse, error) {
	return s.list(ctx, bson.M{"userId": userID}, bson.D{{Key: "updatedAt", Value: -1}}, page, pageSize)
}

// ListPublic returns shared prompts ranked by usage
func (s *PromptService) ListPublic(ctx context.Context, page, pageSize int) (*models.PromptListResponse, error) {
	return s.list(ctx, bson.M{"isPublic": true}, bson.D{{Key: "usageCount", Value: -1}}, page, pageSize)
}

func (s *PromptService) list(ctx context.Context, filter bson.M, sortOrder bson.D, page, pageSize int) (*models.PromptListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count prompts: %w", err)
	}

	opts := options.Find().
		SetSort(sortOrder).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]models.PromptListItem, 0, pageSize)
	for cursor.Next(ctx) {
		var prompt models.Prompt
		if err := cursor.Decode(&prompt); err != nil {
			log.Printf("⚠️ Failed to decode prompt: %v", err)
			continue
		}
		items = append(items, prompt.ToListItem())
	}

	return &models.PromptListResponse{
		Prompts:    items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}

// Update edits a prompt's title, content, tags or visibility
func (s *PromptService) Update(ctx context.Context, userID, promptID string, updates bson.M) (*models.Prompt, error) {
	allowed := bson.M{}
	for _, field := range []string{"title", "content", "tags", "isPublic", "hasVariables", "variableCount"} {
		if v, ok := updates[field]; ok {
			allowed[field] = v
		}
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("no updatable fields provided")
	}
	allowed["updatedAt"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var prompt models.Prompt
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"promptId": promptID, "userId": userID},
		bson.M{"$set": allowed},
		opts,
	).Decode(&prompt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("prompt not found")
		}
		return nil, fmt.Errorf("failed to update prompt: %w", err)
	}
	return &prompt, nil
}

// RecordRun atomically bumps the usage counter for a prompt. Runs against
// public prompts owned by someone else still count.
func (s *PromptService) RecordRun(ctx context.Context, userID, promptID string) (*models.Prompt, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var prompt models.Prompt
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{
			"promptId": promptID,
			"$or": []bson.M{
				{"userId": userID},
				{"isPublic": true},
			},
		},
		bson.M{
			"$inc": bson.M{"usageCount": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		opts,
	).Decode(&prompt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("prompt not found")
		}
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return &prompt, nil
}

// Rate sets the user's rating for their own prompt (0-5)
func (s *PromptService) Rate(ctx context.Context, userID, promptID string, rating float64) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5, got %g", rating)
	}

	result, err := s.collection.UpdateOne(ctx,
		bson.M{"promptId": promptID, "userId": userID},
		bson.M{"$set": bson.M{"rating": rating, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to rate prompt: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("prompt not found")
	}
	return nil
}

// Delete removes a prompt owned by the user
func (s *PromptService) Delete(ctx context.Context, userID, promptID string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{
		"promptId": promptID,
		"userId":   userID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("prompt not found")
	}
	return nil
}
