// Package analytics validates raw analytics payloads against the closed
// event union. Validation is pure: it never persists or forwards, it only
// normalizes a (name, properties) pair into a typed AnalyticsEvent or
// rejects it with a specific violation.
package analytics

import (
	"fmt"
	"math"
	"time"

	"distill/internal/models"
)

// Validation error codes. Callers pattern-match on Code.
const (
	CodeUnknownEventType        = "UnknownEventType"
	CodeMissingRequiredProperty = "MissingRequiredProperty"
	CodeInvalidPropertyType     = "InvalidPropertyType"
	CodeInvalidPropertyValue    = "InvalidPropertyValue"
)

// ValidationError names the event, the offending field and what was expected.
type ValidationError struct {
	Code     string `json:"code"`
	Event    string `json:"event"`
	Field    string `json:"field,omitempty"`
	Expected string `json:"expected,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: event %q", e.Code, e.Event)
	}
	return fmt.Sprintf("%s: event %q field %q (expected %s)", e.Code, e.Event, e.Field, e.Expected)
}

// BaseContext supplies the base properties attached to every event.
// A zero Timestamp defaults to the current time.
type BaseContext struct {
	Timestamp   time.Time
	SessionID   string
	UserID      string
	WorkspaceID string
}

// Validate checks eventName against the closed event set and rawProperties
// against that event's required shape. On success the returned event carries
// properties pinned to the matching variant; downstream consumers never need
// to re-validate. Unrecognized property keys are preserved in Extra, never
// rejected.
func Validate(eventName string, rawProperties map[string]interface{}, base BaseContext) (*models.AnalyticsEvent, *ValidationError) {
	props, extra, err := PropertiesFromMap(eventName, rawProperties)
	if err != nil {
		return nil, err
	}

	ts := base.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &models.AnalyticsEvent{
		Event:       eventName,
		Timestamp:   ts,
		SessionID:   base.SessionID,
		UserID:      base.UserID,
		WorkspaceID: base.WorkspaceID,
		Properties:  props,
		Extra:       extra,
	}, nil
}

// PropertiesFromMap decodes a raw property map into the typed variant for
// eventName. The second return value holds unrecognized keys. Used by
// Validate and by the event store when rehydrating persisted events.
func PropertiesFromMap(eventName string, raw map[string]interface{}) (models.EventProperties, map[string]interface{}, *ValidationError) {
	d := newDecoder(eventName, raw)

	var props models.EventProperties
	switch eventName {
	case models.EventUserSignedUp:
		props = models.UserSignedUpProperties{
			Method:   d.enum("method", "google", "github", "email"),
			Referrer: d.str("referrer"),
		}
	case models.EventWorkspaceCreated:
		props = models.WorkspaceCreatedProperties{
			TeamSize: d.nonNegInt("teamSize"),
			Source:   d.enum("source", "onboarding", "settings"),
		}
	case models.EventExtensionInstalled:
		props = models.ExtensionInstalledProperties{
			Browser: d.enum("browser", "chrome", "firefox", "edge"),
			Version: d.nonEmptyStr("version"),
		}
	case models.EventChatCaptured:
		props = models.ChatCapturedProperties{
			Platform:     d.enum("platform", models.SourcePlatforms...),
			PrivacyMode:  d.enum("privacyMode", models.PrivacyPromptOnly, models.PrivacyFullChat),
			TokenCount:   d.nonNegInt("tokenCount"),
			MessageCount: d.nonNegInt("messageCount"),
		}
	case models.EventPromptCreated:
		p := models.PromptCreatedProperties{
			Source:        d.enum("source", models.PromptSourceCapture, models.PromptSourceManual, models.PromptSourceImport),
			HasVariables:  d.boolean("hasVariables"),
			VariableCount: d.nonNegInt("variableCount"),
			TagCount:      d.nonNegInt("tagCount"),
		}
		// Cross-field invariant: no variables means a zero count.
		if d.err == nil && !p.HasVariables && p.VariableCount != 0 {
			d.fail(CodeInvalidPropertyValue, "variableCount", "0 when hasVariables is false")
		}
		props = p
	case models.EventPromptRun:
		props = models.PromptRunProperties{
			Platform:      d.enum("platform", models.SourceChatGPT, models.SourceClaude, models.SourceGemini, models.SourceCopilot, "clipboard"),
			VariableCount: d.nonNegInt("variableCount"),
			PromptID:      d.nonEmptyStr("promptId"),
			IsShared:      d.boolean("isShared"),
		}
	case models.EventPromptEdited:
		props = models.PromptEditedProperties{
			PromptID: d.nonEmptyStr("promptId"),
			EditType: d.enum("editType", "content", "title", "tags", "variables"),
		}
	case models.EventCoachUsed:
		props = models.CoachUsedProperties{
			SuggestionCount: d.nonNegInt("suggestionCount"),
			Accepted:        d.boolean("accepted"),
		}
	case models.EventMemberInvited:
		props = models.MemberInvitedProperties{
			Role:          d.enum("role", "admin", "member"),
			WorkspaceSize: d.nonNegInt("workspaceSize"),
		}
	case models.EventSearchPerformed:
		props = models.SearchPerformedProperties{
			QueryLength:  d.nonNegInt("queryLength"),
			ResultsCount: d.nonNegInt("resultsCount"),
			SearchType:   d.enum("searchType", "text", "semantic"),
			HasFilters:   d.boolean("hasFilters"),
		}
	case models.EventPageViewed:
		props = models.PageViewedProperties{
			Page:     d.nonEmptyStr("page"),
			Duration: d.optNonNegNumber("duration"),
		}
	case models.EventFeatureUsed:
		props = models.FeatureUsedProperties{
			Feature: d.nonEmptyStr("feature"),
			Context: d.optStr("context"),
		}
	default:
		return nil, nil, &ValidationError{Code: CodeUnknownEventType, Event: eventName}
	}

	if d.err != nil {
		return nil, nil, d.err
	}
	return props, d.extras(), nil
}

// decoder pulls typed fields out of a raw property map, recording the first
// violation and which keys were consumed.
type decoder struct {
	event    string
	raw      map[string]interface{}
	consumed map[string]bool
	err      *ValidationError
}

func newDecoder(event string, raw map[string]interface{}) *decoder {
	return &decoder{event: event, raw: raw, consumed: make(map[string]bool)}
}

func (d *decoder) fail(code, field, expected string) {
	if d.err == nil {
		d.err = &ValidationError{Code: code, Event: d.event, Field: field, Expected: expected}
	}
}

func (d *decoder) get(field string) (interface{}, bool) {
	d.consumed[field] = true
	v, ok := d.raw[field]
	return v, ok && v != nil
}

func (d *decoder) str(field string) string {
	v, ok := d.get(field)
	if !ok {
		d.fail(CodeMissingRequiredProperty, field, "string")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(CodeInvalidPropertyType, field, "string")
		return ""
	}
	return s
}

func (d *decoder) nonEmptyStr(field string) string {
	s := d.str(field)
	if d.err == nil && s == "" {
		d.fail(CodeInvalidPropertyValue, field, "non-empty string")
	}
	return s
}

func (d *decoder) optStr(field string) string {
	v, ok := d.get(field)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(CodeInvalidPropertyType, field, "string")
		return ""
	}
	return s
}

func (d *decoder) enum(field string, allowed ...string) string {
	s := d.str(field)
	if d.err != nil {
		return s
	}
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	d.fail(CodeInvalidPropertyValue, field, fmt.Sprintf("one of %v", allowed))
	return s
}

func (d *decoder) boolean(field string) bool {
	v, ok := d.get(field)
	if !ok {
		d.fail(CodeMissingRequiredProperty, field, "boolean")
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(CodeInvalidPropertyType, field, "boolean")
		return false
	}
	return b
}

// nonNegInt accepts whole JSON numbers (decoding yields float64) and native
// int types, rejecting fractional values and negatives.
func (d *decoder) nonNegInt(field string) int {
	v, ok := d.get(field)
	if !ok {
		d.fail(CodeMissingRequiredProperty, field, "non-negative integer")
		return 0
	}
	n, ok := toInt(v)
	if !ok {
		d.fail(CodeInvalidPropertyType, field, "non-negative integer")
		return 0
	}
	if n < 0 {
		d.fail(CodeInvalidPropertyValue, field, "non-negative integer")
		return 0
	}
	return n
}

func (d *decoder) optNonNegNumber(field string) *float64 {
	v, ok := d.get(field)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		d.fail(CodeInvalidPropertyType, field, "non-negative number")
		return nil
	}
	if f < 0 {
		d.fail(CodeInvalidPropertyValue, field, "non-negative number")
		return nil
	}
	return &f
}

// extras returns raw keys the event's shape did not consume.
func (d *decoder) extras() map[string]interface{} {
	var extra map[string]interface{}
	for k, v := range d.raw {
		if !d.consumed[k] {
			if extra == nil {
				extra = make(map[string]interface{})
			}
			extra[k] = v
		}
	}
	return extra
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case float32:
		f := float64(n)
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
