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

// ConversationService handles persistence for captured conversations
type ConversationService struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

// NewConversationService creates a new conversation service
func NewConversationService(db *database.MongoDB) *ConversationService {
	return &ConversationService{
		db:         db,
		collection: db.Collection(database.CollectionConversations),
	}
}

// CreateOrUpdate stores a captured conversation, or replaces it on
// re-capture. Uses an atomic upsert so simultaneous captures from multiple
// tabs cannot race; the version check rejects stale re-captures.
func (s *ConversationService) CreateOrUpdate(ctx context.Context, userID, workspaceID string, req *models.CaptureRequest) (*models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if req.ID == "" {
		return nil, fmt.Errorf("conversation ID is required")
	}
	if !models.ValidSource(req.Source) {
		return nil, fmt.Errorf("unrecognized source platform %q", req.Source)
	}
	for _, m := range req.Messages {
		if !models.ValidRole(m.Role) {
			return nil, fmt.Errorf("unrecognized message role %q", m.Role)
		}
	}
	privacyMode := req.PrivacyMode
	if privacyMode == "" {
		privacyMode = models.PrivacyPromptOnly
	}
	if privacyMode != models.PrivacyPromptOnly && privacyMode != models.PrivacyFullChat {
		return nil, fmt.Errorf("unrecognized privacy mode %q", privacyMode)
	}

	now := time.Now().UTC()
	newVersion := req.Version + 1

	filter := bson.M{
		"userId":         userID,
		"conversationId": req.ID,
		// Either a fresh capture or a re-capture of the version the client saw.
		"$or": []bson.M{
			{"version": req.Version},
			{"version": bson.M{"$exists": false}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"title":       req.Title,
			"source":      req.Source,
			"sourceUrl":   req.SourceURL,
			"messages":    req.Messages,
			"metadata":    req.Metadata,
			"privacyMode": privacyMode,
			"workspaceId": workspaceID,
			"version":     newVersion,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{
			"userId":         userID,
			"conversationId": req.ID,
			"createdAt":      now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conv models.Conversation
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) || err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("version conflict for conversation %s", req.ID)
		}
		return nil, fmt.Errorf("failed to upsert conversation: %w", err)
	}

	return &conv, nil
}

// Get retrieves one conversation owned by the user
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.collection.FindOne(ctx, bson.M{
		"userId":         userID,
		"conversationId": conversationID,
	}).Decode(&conv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("conversation not found")
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// List returns a page of the user's conversations, most recent first
func (s *ConversationService) List(ctx context.Context, userID string, page, pageSize int) (*models.ConversationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := bson.M{"userId": userID}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]models.ConversationListItem, 0, pageSize)
	for cursor.Next(ctx) {
		var conv models.Conversation
		if err := cursor.Decode(&conv); err != nil {
			log.Printf("⚠️ Failed to decode conversation: %v", err)
			continue
		}
		items = append(items, conv.ToListItem())
	}

	return &models.ConversationListResponse{
		Conversations: items,
		TotalCount:    total,
		Page:          page,
		PageSize:      pageSize,
		HasMore:       int64(page*pageSize) < total,
	}, nil
}

// AppendMessages appends new turns to an existing conversation. Existing
// messages are never edited in place; the version check keeps concurrent
// appends from interleaving.
func (s *ConversationService) AppendMessages(ctx context.Context, userID, conversationID string, req *models.AppendMessagesRequest) (*models.Conversation, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}
	for _, m := range req.Messages {
		if !models.ValidRole(m.Role) {
			return nil, fmt.Errorf("unrecognized message role %q", m.Role)
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv models.Conversation
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{
			"userId":         userID,
			"conversationId": conversationID,
			"version":        req.Version,
		},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": req.Messages}},
			"$inc":  bson.M{"version": 1},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
		opts,
	).Decode(&conv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Distinguish a missing conversation from a stale version.
			count, countErr := s.collection.CountDocuments(ctx, bson.M{
				"userId":         userID,
				"conversationId": conversationID,
			})
			if countErr == nil && count > 0 {
				return nil, fmt.Errorf("version conflict for conversation %s", conversationID)
			}
			return nil, fmt.Errorf("conversation not found")
		}
		return nil, fmt.Errorf("failed to append messages: %w", err)
	}

	return &conv, nil
}

// Delete removes a conversation owned by the user
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{
		"userId":         userID,
		"conversationId": conversationID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("conversation not found")
	}
	return nil
}
