package dashboard

import (
	"testing"
	"time"

	"distill/internal/models"
)

var (
	windowStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	testWindow  = models.TimeWindow{Start: windowStart, End: windowEnd}
)

func event(eventType, userID string, ts time.Time, props models.EventProperties) models.AnalyticsEvent {
	return models.AnalyticsEvent{
		Event:      eventType,
		Timestamp:  ts,
		UserID:     userID,
		Properties: props,
	}
}

func capture(userID string, ts time.Time) models.AnalyticsEvent {
	return event(models.EventChatCaptured, userID, ts, models.ChatCapturedProperties{
		Platform:     models.SourceClaude,
		PrivacyMode:  models.PrivacyPromptOnly,
		TokenCount:   100,
		MessageCount: 4,
	})
}

func signup(userID string, ts time.Time) models.AnalyticsEvent {
	return event(models.EventUserSignedUp, userID, ts, models.UserSignedUpProperties{Method: "email"})
}

func TestComputeActivationFunnel(t *testing.T) {
	day := func(d int) time.Time { return windowStart.AddDate(0, 0, d) }

	events := []models.AnalyticsEvent{
		signup("u1", day(0)),
		signup("u2", day(0)),
		signup("u3", day(1)),
		signup("u4", day(1)),
		event(models.EventWorkspaceCreated, "u1", day(1), models.WorkspaceCreatedProperties{TeamSize: 1, Source: "onboarding"}),
		event(models.EventWorkspaceCreated, "u2", day(1), models.WorkspaceCreatedProperties{TeamSize: 3, Source: "onboarding"}),
		event(models.EventExtensionInstalled, "u1", day(2), models.ExtensionInstalledProperties{Browser: "chrome", Version: "1.0"}),
		event(models.EventExtensionInstalled, "u2", day(2), models.ExtensionInstalledProperties{Browser: "firefox", Version: "1.0"}),
		// u1 captures three times in-window.
		capture("u1", day(3)), capture("u1", day(4)), capture("u1", day(5)),
		// u2 captures twice: first capture counts, third never happens.
		capture("u2", day(3)), capture("u2", day(4)),
	}

	m := ComputeActivationFunnel(events, testWindow)

	if m.Signups != 4 || m.WorkspacesCreated != 2 || m.ExtensionsInstalled != 2 {
		t.Errorf("Stage counts wrong: %+v", m)
	}
	if m.FirstCapture != 2 {
		t.Errorf("Expected 2 first captures, got %d", m.FirstCapture)
	}
	if m.ThirdCapture != 1 {
		t.Errorf("Expected 1 third capture, got %d", m.ThirdCapture)
	}
	if m.SignupToWorkspace != 0.5 {
		t.Errorf("SignupToWorkspace = %v, want 0.5", m.SignupToWorkspace)
	}

	// Overall must equal thirdCapture/signups, and also the product of the
	// per-stage conversions when no intermediate stage is zero.
	want := float64(m.ThirdCapture) / float64(m.Signups)
	if m.Overall != want {
		t.Errorf("Overall = %v, want %v", m.Overall, want)
	}
	product := m.SignupToWorkspace * m.WorkspaceToExtension * m.ExtensionToFirstCapture * m.FirstToThirdCapture
	if diff := m.Overall - product; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("Overall %v disagrees with stage product %v", m.Overall, product)
	}
}

func TestComputeActivationFunnel_ZeroSignups(t *testing.T) {
	events := []models.AnalyticsEvent{
		capture("u1", windowStart.AddDate(0, 0, 1)),
	}

	m := ComputeActivationFunnel(events, testWindow)
	if m.Overall != 0 {
		t.Errorf("Overall must be 0 when signups is 0, got %v", m.Overall)
	}
	if m.SignupToWorkspace != 0 || m.FirstToThirdCapture == 0 && m.FirstCapture != 1 {
		t.Errorf("Zero-guarded rates wrong: %+v", m)
	}
}

// An out-of-window capture still decides which capture is the third.
func TestComputeActivationFunnel_OrdinalAcrossWindow(t *testing.T) {
	before := windowStart.AddDate(0, 0, -10)
	events := []models.AnalyticsEvent{
		capture("u1", before),
		capture("u1", before.Add(time.Hour)),
		capture("u1", windowStart.AddDate(0, 0, 1)), // Third capture, in-window
	}

	m := ComputeActivationFunnel(events, testWindow)
	if m.FirstCapture != 0 {
		t.Errorf("First capture was out-of-window, got firstCapture=%d", m.FirstCapture)
	}
	if m.ThirdCapture != 1 {
		t.Errorf("Third capture is in-window, got thirdCapture=%d", m.ThirdCapture)
	}
}

// Scenario: empty input returns all-zero metrics, no panic.
func TestComputeEngagement_Empty(t *testing.T) {
	m := ComputeEngagement(nil, testWindow)
	if m != (models.EngagementMetrics{}) {
		t.Errorf("Expected zeroed metrics, got %+v", m)
	}
}

func TestComputeEngagement(t *testing.T) {
	lastDay := time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC)
	midMonth := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	dur := 30.0

	events := []models.AnalyticsEvent{
		// u1 active on the window's last day: DAU, WAU, MAU.
		event(models.EventPromptCreated, "u1", lastDay, models.PromptCreatedProperties{Source: "capture", HasVariables: false, VariableCount: 0, TagCount: 2}),
		// u2 active mid-month only: MAU but not DAU/WAU.
		event(models.EventPromptRun, "u2", midMonth, models.PromptRunProperties{Platform: "chatgpt", VariableCount: 0, PromptID: "p1", IsShared: false}),
		event(models.EventPromptRun, "u2", midMonth.Add(time.Hour), models.PromptRunProperties{Platform: "claude", VariableCount: 0, PromptID: "p1", IsShared: false}),
		event(models.EventPromptRun, "u2", midMonth.Add(2*time.Hour), models.PromptRunProperties{Platform: "clipboard", VariableCount: 0, PromptID: "p2", IsShared: false}),
		// Page views: one with duration, one without (ignored for the average).
		event(models.EventPageViewed, "u1", lastDay, models.PageViewedProperties{Page: "/dashboard", Duration: &dur}),
		event(models.EventPageViewed, "u2", midMonth, models.PageViewedProperties{Page: "/prompts"}),
	}

	m := ComputeEngagement(events, testWindow)

	if m.DailyActiveUsers != 1 {
		t.Errorf("DAU = %d, want 1", m.DailyActiveUsers)
	}
	if m.WeeklyActiveUsers != 1 {
		t.Errorf("WAU = %d, want 1", m.WeeklyActiveUsers)
	}
	if m.MonthlyActiveUsers != 2 {
		t.Errorf("MAU = %d, want 2", m.MonthlyActiveUsers)
	}
	if m.PromptsPerUser != 0.5 {
		t.Errorf("PromptsPerUser = %v, want 0.5 (1 prompt / 2 users)", m.PromptsPerUser)
	}
	if m.RunsPerPrompt != 1.5 {
		t.Errorf("RunsPerPrompt = %v, want 1.5 (3 runs / 2 prompts)", m.RunsPerPrompt)
	}
	if m.AverageSessionDuration != 30.0 {
		t.Errorf("AverageSessionDuration = %v, want 30", m.AverageSessionDuration)
	}
}

func TestComputeFeatureAdoption(t *testing.T) {
	ts := windowStart.AddDate(0, 0, 5)

	events := []models.AnalyticsEvent{
		event(models.EventCoachUsed, "u1", ts, models.CoachUsedProperties{SuggestionCount: 3, Accepted: true}),
		event(models.EventSearchPerformed, "u2", ts, models.SearchPerformedProperties{QueryLength: 5, ResultsCount: 2, SearchType: "semantic", HasFilters: false}),
		event(models.EventSearchPerformed, "u3", ts, models.SearchPerformedProperties{QueryLength: 5, ResultsCount: 2, SearchType: "text", HasFilters: false}),
		capture("u4", ts),
		event(models.EventChatCaptured, "u4", ts, models.ChatCapturedProperties{
			Platform: models.SourceChatGPT, PrivacyMode: models.PrivacyFullChat, TokenCount: 10, MessageCount: 1,
		}),
	}

	m := ComputeFeatureAdoption(events, testWindow)

	if m.CoachUsageRate != 0.25 {
		t.Errorf("CoachUsageRate = %v, want 0.25 (1 of 4 users)", m.CoachUsageRate)
	}
	if m.SemanticSearchRate != 0.25 {
		t.Errorf("SemanticSearchRate = %v, want 0.25", m.SemanticSearchRate)
	}
	if m.PrivacyModeDistribution.PromptOnly != 1 || m.PrivacyModeDistribution.FullChat != 1 {
		t.Errorf("Privacy distribution wrong: %+v", m.PrivacyModeDistribution)
	}

	// All five platform keys must be present even when zero.
	for _, p := range models.SourcePlatforms {
		if _, ok := m.PlatformDistribution[p]; !ok {
			t.Errorf("Platform key %q missing from distribution", p)
		}
	}
	if m.PlatformDistribution[models.SourceClaude] != 1 || m.PlatformDistribution[models.SourceChatGPT] != 1 {
		t.Errorf("Platform tallies wrong: %+v", m.PlatformDistribution)
	}
	if m.PlatformDistribution[models.SourceGemini] != 0 {
		t.Errorf("Unseen platform should tally 0: %+v", m.PlatformDistribution)
	}
}

func TestComputeTeamHealth(t *testing.T) {
	ts := windowStart.AddDate(0, 0, 2)

	withWorkspace := func(e models.AnalyticsEvent, ws string) models.AnalyticsEvent {
		e.WorkspaceID = ws
		return e
	}

	events := []models.AnalyticsEvent{
		withWorkspace(event(models.EventMemberInvited, "u1", ts, models.MemberInvitedProperties{Role: "member", WorkspaceSize: 2}), "w1"),
		withWorkspace(event(models.EventMemberInvited, "u1", ts, models.MemberInvitedProperties{Role: "admin", WorkspaceSize: 2}), "w1"),
		// Signup landing in an existing workspace: an accepted invite.
		withWorkspace(signup("u2", ts.Add(time.Hour)), "w1"),
		// Signup with no workspace: organic, not an acceptance.
		signup("u3", ts.Add(2*time.Hour)),
		withWorkspace(capture("u9", ts), "w2"),
	}

	m := ComputeTeamHealth(events, testWindow)

	if m.InvitesSent != 2 {
		t.Errorf("InvitesSent = %d, want 2", m.InvitesSent)
	}
	if m.InvitesAccepted != 1 {
		t.Errorf("InvitesAccepted = %d, want 1", m.InvitesAccepted)
	}
	if m.InviteAcceptRate != 0.5 {
		t.Errorf("InviteAcceptRate = %v, want 0.5", m.InviteAcceptRate)
	}
	// w1 has u1 and u2, w2 has u9: 3 members across 2 workspaces.
	if m.AverageMembersPerWorkspace != 1.5 {
		t.Errorf("AverageMembersPerWorkspace = %v, want 1.5", m.AverageMembersPerWorkspace)
	}
}

func TestComputeDashboardMetrics_AssumptionViolation(t *testing.T) {
	events := []models.AnalyticsEvent{
		signup("u1", windowStart),
		{Event: models.EventChatCaptured, Timestamp: windowStart, UserID: "u2"}, // nil Properties
	}

	_, err := ComputeDashboardMetrics(events, testWindow)
	if err == nil {
		t.Fatal("Expected assumption violation for un-validated event")
	}
	if err.Index != 1 {
		t.Errorf("Violation should name the offending event, got index %d", err.Index)
	}
}

func TestComputeDashboardMetrics_Empty(t *testing.T) {
	m, err := ComputeDashboardMetrics(nil, testWindow)
	if err != nil {
		t.Fatalf("Empty input must not fail: %v", err)
	}
	if m.ActivationFunnel.Overall != 0 || m.Engagement.MonthlyActiveUsers != 0 {
		t.Errorf("Expected zeroed metrics, got %+v", m)
	}
	if len(m.FeatureAdoption.PlatformDistribution) != len(models.SourcePlatforms) {
		t.Errorf("Platform keys must be present even for empty input")
	}
}
