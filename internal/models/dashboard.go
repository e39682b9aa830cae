package models

import "time"

// TimeWindow is a closed [Start, End] aggregation window.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window (inclusive bounds).
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ActivationFunnelMetrics measures onboarding conversion:
// signup -> workspace -> extension install -> first capture -> third capture.
// All rates are zero-guarded: a zero denominator yields 0, never NaN/Inf.
type ActivationFunnelMetrics struct {
	Signups             int `json:"signups"`
	WorkspacesCreated   int `json:"workspacesCreated"`
	ExtensionsInstalled int `json:"extensionsInstalled"`
	FirstCapture        int `json:"firstCapture"`
	ThirdCapture        int `json:"thirdCapture"`

	SignupToWorkspace       float64 `json:"signupToWorkspace"`
	WorkspaceToExtension    float64 `json:"workspaceToExtension"`
	ExtensionToFirstCapture float64 `json:"extensionToFirstCapture"`
	FirstToThirdCapture     float64 `json:"firstToThirdCapture"`
	Overall                 float64 `json:"overall"` // == thirdCapture/signups when signups > 0
}

// EngagementMetrics measures how actively users work with prompts.
type EngagementMetrics struct {
	DailyActiveUsers       int     `json:"dailyActiveUsers"`
	WeeklyActiveUsers      int     `json:"weeklyActiveUsers"`
	MonthlyActiveUsers     int     `json:"monthlyActiveUsers"`
	PromptsPerUser         float64 `json:"promptsPerUser"`
	RunsPerPrompt          float64 `json:"runsPerPrompt"`
	AverageSessionDuration float64 `json:"averageSessionDuration"` // Seconds, from page_viewed.duration
}

// PrivacyModeDistribution tallies chat_captured privacy modes.
type PrivacyModeDistribution struct {
	PromptOnly int `json:"promptOnly"`
	FullChat   int `json:"fullChat"`
}

// FeatureAdoptionMetrics measures optional-feature uptake. PlatformDistribution
// always carries all five platform keys, zero-valued when unseen.
type FeatureAdoptionMetrics struct {
	CoachUsageRate          float64                 `json:"coachUsageRate"`
	SemanticSearchRate      float64                 `json:"semanticSearchRate"`
	PrivacyModeDistribution PrivacyModeDistribution `json:"privacyModeDistribution"`
	PlatformDistribution    map[string]int          `json:"platformDistribution"`
}

// TeamHealthMetrics measures collaboration inside workspaces.
type TeamHealthMetrics struct {
	InvitesSent                int     `json:"invitesSent"`
	InvitesAccepted            int     `json:"invitesAccepted"`
	InviteAcceptRate           float64 `json:"inviteAcceptRate"`
	AverageMembersPerWorkspace float64 `json:"averageMembersPerWorkspace"`
}

// DashboardMetrics bundles the four metric groups over one window.
type DashboardMetrics struct {
	Window           TimeWindow              `json:"window"`
	ActivationFunnel ActivationFunnelMetrics `json:"activationFunnel"`
	Engagement       EngagementMetrics       `json:"engagement"`
	FeatureAdoption  FeatureAdoptionMetrics  `json:"featureAdoption"`
	TeamHealth       TeamHealthMetrics       `json:"teamHealth"`
}
