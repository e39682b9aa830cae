// Package dashboard computes dashboard metrics from validated analytics
// events. Aggregation is pure and in-memory: events are fetched by the
// caller, assumed to have passed validation, and never mutated here. Every
// ratio is zero-guarded; empty inputs produce zeroed metrics, never panics.
package dashboard

import (
	"fmt"
	"sort"
	"time"

	"distill/internal/models"
)

// AssumptionError reports an event that bypassed validation. The aggregator
// does not re-validate; a malformed event is a hard precondition violation.
type AssumptionError struct {
	Index int    `json:"index"`
	Event string `json:"event"`
}

func (e *AssumptionError) Error() string {
	return fmt.Sprintf("MalformedEventAssumptionViolation: event %d (%q) has no pinned properties", e.Index, e.Event)
}

// ComputeDashboardMetrics bundles all four metric groups over one window.
// The only failure mode is a malformed (un-validated) event in the batch.
func ComputeDashboardMetrics(events []models.AnalyticsEvent, window models.TimeWindow) (models.DashboardMetrics, *AssumptionError) {
	for i, e := range events {
		if e.Properties == nil || e.Properties.EventType() != e.Event {
			return models.DashboardMetrics{}, &AssumptionError{Index: i, Event: e.Event}
		}
	}

	return models.DashboardMetrics{
		Window:           window,
		ActivationFunnel: ComputeActivationFunnel(events, window),
		Engagement:       ComputeEngagement(events, window),
		FeatureAdoption:  ComputeFeatureAdoption(events, window),
		TeamHealth:       ComputeTeamHealth(events, window),
	}, nil
}

// ComputeActivationFunnel measures onboarding conversion. Stage counts are
// distinct actors; first/third capture ranks an actor's chat_captured events
// across the whole batch and checks whether that milestone falls in-window.
func ComputeActivationFunnel(events []models.AnalyticsEvent, window models.TimeWindow) models.ActivationFunnelMetrics {
	signups := make(map[string]bool)
	workspaces := make(map[string]bool)
	extensions := make(map[string]bool)

	captures := make(map[string][]time.Time)
	for i, e := range events {
		key := actorKey(e, i)
		switch e.Event {
		case models.EventUserSignedUp:
			if window.Contains(e.Timestamp) {
				signups[key] = true
			}
		case models.EventWorkspaceCreated:
			if window.Contains(e.Timestamp) {
				workspaces[key] = true
			}
		case models.EventExtensionInstalled:
			if window.Contains(e.Timestamp) {
				extensions[key] = true
			}
		case models.EventChatCaptured:
			// Collected unconditionally: an out-of-window capture still
			// affects which capture is an actor's first or third.
			captures[key] = append(captures[key], e.Timestamp)
		}
	}

	firstCapture := 0
	thirdCapture := 0
	for _, times := range captures {
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		if window.Contains(times[0]) {
			firstCapture++
		}
		if len(times) >= 3 && window.Contains(times[2]) {
			thirdCapture++
		}
	}

	m := models.ActivationFunnelMetrics{
		Signups:             len(signups),
		WorkspacesCreated:   len(workspaces),
		ExtensionsInstalled: len(extensions),
		FirstCapture:        firstCapture,
		ThirdCapture:        thirdCapture,
	}
	m.SignupToWorkspace = safeDiv(float64(m.WorkspacesCreated), float64(m.Signups))
	m.WorkspaceToExtension = safeDiv(float64(m.ExtensionsInstalled), float64(m.WorkspacesCreated))
	m.ExtensionToFirstCapture = safeDiv(float64(m.FirstCapture), float64(m.ExtensionsInstalled))
	m.FirstToThirdCapture = safeDiv(float64(m.ThirdCapture), float64(m.FirstCapture))
	// Equivalent to the product of the per-stage conversions whenever the
	// intermediate stages are non-zero.
	m.Overall = safeDiv(float64(m.ThirdCapture), float64(m.Signups))
	return m
}

// ComputeEngagement derives active-user counts and per-prompt usage.
// DAU/WAU/MAU count distinct actors in the trailing 1/7/30 UTC calendar
// days ending at the window's end, intersected with the window.
func ComputeEngagement(events []models.AnalyticsEvent, window models.TimeWindow) models.EngagementMetrics {
	dayEnd := window.End.UTC().Truncate(24 * time.Hour)
	dayCut := dayEnd
	weekCut := dayEnd.AddDate(0, 0, -6)
	monthCut := dayEnd.AddDate(0, 0, -29)

	daily := make(map[string]bool)
	weekly := make(map[string]bool)
	monthly := make(map[string]bool)
	actors := make(map[string]bool)

	promptsCreated := 0
	runs := 0
	runPrompts := make(map[string]bool)
	var durationSum float64
	durationCount := 0

	for i, e := range events {
		if !window.Contains(e.Timestamp) {
			continue
		}
		key := actorKey(e, i)
		actors[key] = true

		day := e.Timestamp.UTC().Truncate(24 * time.Hour)
		if !day.Before(dayCut) {
			daily[key] = true
		}
		if !day.Before(weekCut) {
			weekly[key] = true
		}
		if !day.Before(monthCut) {
			monthly[key] = true
		}

		switch props := e.Properties.(type) {
		case models.PromptCreatedProperties:
			promptsCreated++
		case models.PromptRunProperties:
			runs++
			runPrompts[props.PromptID] = true
		case models.PageViewedProperties:
			// Events without a duration are ignored for the average.
			if props.Duration != nil {
				durationSum += *props.Duration
				durationCount++
			}
		}
	}

	return models.EngagementMetrics{
		DailyActiveUsers:       len(daily),
		WeeklyActiveUsers:      len(weekly),
		MonthlyActiveUsers:     len(monthly),
		PromptsPerUser:         safeDiv(float64(promptsCreated), float64(len(actors))),
		RunsPerPrompt:          safeDiv(float64(runs), float64(len(runPrompts))),
		AverageSessionDuration: safeDiv(durationSum, float64(durationCount)),
	}
}

// ComputeFeatureAdoption measures optional-feature uptake and capture
// distributions. PlatformDistribution always carries all five platform keys.
func ComputeFeatureAdoption(events []models.AnalyticsEvent, window models.TimeWindow) models.FeatureAdoptionMetrics {
	actors := make(map[string]bool)
	coachActors := make(map[string]bool)
	semanticActors := make(map[string]bool)

	platform := make(map[string]int, len(models.SourcePlatforms))
	for _, p := range models.SourcePlatforms {
		platform[p] = 0
	}
	var privacy models.PrivacyModeDistribution

	for i, e := range events {
		if !window.Contains(e.Timestamp) {
			continue
		}
		key := actorKey(e, i)
		actors[key] = true

		switch props := e.Properties.(type) {
		case models.CoachUsedProperties:
			coachActors[key] = true
		case models.SearchPerformedProperties:
			if props.SearchType == "semantic" {
				semanticActors[key] = true
			}
		case models.ChatCapturedProperties:
			platform[props.Platform]++
			switch props.PrivacyMode {
			case models.PrivacyPromptOnly:
				privacy.PromptOnly++
			case models.PrivacyFullChat:
				privacy.FullChat++
			}
		}
	}

	return models.FeatureAdoptionMetrics{
		CoachUsageRate:          safeDiv(float64(len(coachActors)), float64(len(actors))),
		SemanticSearchRate:      safeDiv(float64(len(semanticActors)), float64(len(actors))),
		PrivacyModeDistribution: privacy,
		PlatformDistribution:    platform,
	}
}

// ComputeTeamHealth measures collaboration: invites sent vs signups landing
// in an existing workspace, and workspace sizes seen over the window.
func ComputeTeamHealth(events []models.AnalyticsEvent, window models.TimeWindow) models.TeamHealthMetrics {
	invitesSent := 0
	invitesAccepted := 0
	members := make(map[string]map[string]bool) // workspaceID -> actor set

	for i, e := range events {
		if !window.Contains(e.Timestamp) {
			continue
		}
		switch e.Event {
		case models.EventMemberInvited:
			invitesSent++
		case models.EventUserSignedUp:
			// A signup already carrying a workspace joined via invite.
			if e.WorkspaceID != "" {
				invitesAccepted++
			}
		}

		if e.WorkspaceID != "" {
			if members[e.WorkspaceID] == nil {
				members[e.WorkspaceID] = make(map[string]bool)
			}
			members[e.WorkspaceID][actorKey(e, i)] = true
		}
	}

	totalMembers := 0
	for _, set := range members {
		totalMembers += len(set)
	}

	return models.TeamHealthMetrics{
		InvitesSent:                invitesSent,
		InvitesAccepted:            invitesAccepted,
		InviteAcceptRate:           safeDiv(float64(invitesAccepted), float64(invitesSent)),
		AverageMembersPerWorkspace: safeDiv(float64(totalMembers), float64(len(members))),
	}
}

// actorKey identifies the acting user: user ID, else session ID, else a
// per-event singleton so anonymous events never collapse together.
func actorKey(e models.AnalyticsEvent, index int) string {
	if e.UserID != "" {
		return "u:" + e.UserID
	}
	if e.SessionID != "" {
		return "s:" + e.SessionID
	}
	return fmt.Sprintf("i:%d", index)
}

// safeDiv returns num/den, or 0 when den is 0 (never NaN/Inf).
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
