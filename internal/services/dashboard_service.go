package services

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"distill/internal/dashboard"
	"distill/internal/models"
)

// DashboardService computes dashboard metrics over stored events, with a
// short TTL cache so repeated loads of the same window don't re-scan Mongo.
type DashboardService struct {
	events *EventService
	cache  *gocache.Cache
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(events *EventService, cacheTTL time.Duration) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		events: events,
		cache:  gocache.New(cacheTTL, 10*time.Minute),
	}
}

// GetMetrics returns dashboard metrics for a workspace over a window.
// An empty workspaceID aggregates across all workspaces.
func (s *DashboardService) GetMetrics(ctx context.Context, workspaceID string, window models.TimeWindow) (*models.DashboardMetrics, error) {
	if window.End.Before(window.Start) {
		return nil, fmt.Errorf("window end precedes start")
	}

	key := cacheKey(workspaceID, window)
	if cached, found := s.cache.Get(key); found {
		metrics := cached.(models.DashboardMetrics)
		return &metrics, nil
	}

	// Fetch without a time filter lower bound tight to the window: capture
	// ordinals and trailing active-user windows look back before the window
	// start, so pull 30 days of lead-in.
	fetchWindow := models.TimeWindow{
		Start: window.Start.AddDate(0, 0, -30),
		End:   window.End,
	}
	events, err := s.events.Query(ctx, EventFilter{WorkspaceID: workspaceID}, fetchWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	metrics, aerr := dashboard.ComputeDashboardMetrics(events, window)
	if aerr != nil {
		return nil, aerr
	}

	s.cache.Set(key, metrics, gocache.DefaultExpiration)
	return &metrics, nil
}

// Invalidate drops any cached windows for a workspace. Called rarely; the
// TTL handles the common case.
func (s *DashboardService) Invalidate(workspaceID string) {
	for key := range s.cache.Items() {
		if len(key) >= len(workspaceID) && key[:len(workspaceID)] == workspaceID {
			s.cache.Delete(key)
		}
	}
}

func cacheKey(workspaceID string, window models.TimeWindow) string {
	return fmt.Sprintf("%s|%d|%d", workspaceID, window.Start.Unix(), window.End.Unix())
}
