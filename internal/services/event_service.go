package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"distill/internal/analytics"
	"distill/internal/database"
	"distill/internal/models"
)

// EventService is the append-only store for validated analytics events.
// Events are never updated; the only mutation is retention deletion.
type EventService struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

// storedEvent is the persisted shape. Properties go down as the raw map the
// validator accepted (typed fields plus any extra keys) and are re-pinned to
// their variant on read.
type storedEvent struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty"`
	Event       string                 `bson:"event"`
	Timestamp   time.Time              `bson:"timestamp"`
	SessionID   string                 `bson:"sessionId,omitempty"`
	UserID      string                 `bson:"userId,omitempty"`
	WorkspaceID string                 `bson:"workspaceId,omitempty"`
	Properties  map[string]interface{} `bson:"properties"`
}

// NewEventService creates a new event service
func NewEventService(db *database.MongoDB) *EventService {
	return &EventService{
		db:         db,
		collection: db.Collection(database.CollectionAnalyticsEvents),
	}
}

// Append stores one validated event together with the raw property map it
// was validated from. The caller must have run the event through the
// validator first; this method does not re-check shapes.
func (s *EventService) Append(ctx context.Context, event *models.AnalyticsEvent, rawProperties map[string]interface{}) error {
	if event.Properties == nil || event.Properties.EventType() != event.Event {
		return fmt.Errorf("event %q has no pinned properties", event.Event)
	}

	doc := storedEvent{
		Event:       event.Event,
		Timestamp:   event.Timestamp.UTC(),
		SessionID:   event.SessionID,
		UserID:      event.UserID,
		WorkspaceID: event.WorkspaceID,
		Properties:  rawProperties,
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// EventFilter narrows a query. Zero values mean "no constraint".
type EventFilter struct {
	WorkspaceID string
	UserID      string
	EventTypes  []string
}

// Query returns events inside the window matching the filter, oldest first,
// with typed properties rehydrated. Stored events that no longer pass
// rehydration (e.g. written by a newer schema) are skipped with a warning
// rather than poisoning the whole batch.
func (s *EventService) Query(ctx context.Context, filter EventFilter, window models.TimeWindow) ([]models.AnalyticsEvent, error) {
	query := bson.M{
		"timestamp": bson.M{
			"$gte": window.Start,
			"$lte": window.End,
		},
	}
	if filter.WorkspaceID != "" {
		query["workspaceId"] = filter.WorkspaceID
	}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if len(filter.EventTypes) > 0 {
		query["event"] = bson.M{"$in": filter.EventTypes}
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]models.AnalyticsEvent, 0)
	for cursor.Next(ctx) {
		var doc storedEvent
		if err := cursor.Decode(&doc); err != nil {
			log.Printf("⚠️ Failed to decode analytics event: %v", err)
			continue
		}

		props, extra, verr := analytics.PropertiesFromMap(doc.Event, doc.Properties)
		if verr != nil {
			log.Printf("⚠️ Skipping stored event %s (%s): %v", doc.ID.Hex(), doc.Event, verr)
			continue
		}

		events = append(events, models.AnalyticsEvent{
			ID:          doc.ID,
			Event:       doc.Event,
			Timestamp:   doc.Timestamp,
			SessionID:   doc.SessionID,
			UserID:      doc.UserID,
			WorkspaceID: doc.WorkspaceID,
			Properties:  props,
			Extra:       extra,
		})
	}

	return events, nil
}

// DeleteOlderThan removes events whose timestamp precedes the cutoff.
// Used by the retention job.
func (s *EventService) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{
		"timestamp": bson.M{"$lt": cutoff.UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}
	return result.DeletedCount, nil
}
