package distill

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"distill/internal/models"
)

func msg(role, content string) models.ConversationMessage {
	return models.ConversationMessage{ID: "m", Role: role, Content: content}
}

func maxLen(n int) *int {
	return &n
}

func TestDistill_EmptyInput(t *testing.T) {
	engine := NewEngine(Lexicon{})

	_, derr := engine.Distill(models.DistillRequest{})
	if derr == nil {
		t.Fatal("Expected error for empty messages")
	}
	if derr.Kind != ErrorKindEmptyInput {
		t.Errorf("Expected EmptyInputError, got %v", derr.Kind)
	}
}

func TestDistill_NoContent(t *testing.T) {
	engine := NewEngine(Lexicon{})

	// Messages exist but carry no content: originalLength is 0 and dividing
	// by it is an engine error, not a valid distillation.
	_, derr := engine.Distill(models.DistillRequest{
		Messages: []models.ConversationMessage{msg("user", ""), msg("assistant", "")},
	})
	if derr == nil {
		t.Fatal("Expected error for content-free messages")
	}
	if derr.Kind != ErrorKindEmptyInput {
		t.Errorf("Expected EmptyInputError, got %v", derr.Kind)
	}
}

func TestDistill_InvalidOptions(t *testing.T) {
	engine := NewEngine(Lexicon{})

	// An explicit zero is just as invalid as a negative cap; only an absent
	// maxLength means uncapped.
	for _, n := range []int{-10, 0} {
		_, derr := engine.Distill(models.DistillRequest{
			Messages: []models.ConversationMessage{msg("user", "Explain generics in Go")},
			Options:  &models.DistillOptions{MaxLength: maxLen(n)},
		})
		if derr == nil {
			t.Fatalf("Expected error for maxLength %d", n)
		}
		if derr.Kind != ErrorKindInvalidOptions {
			t.Errorf("maxLength %d: expected InvalidOptionsError, got %v", n, derr.Kind)
		}
	}
}

func TestDistill_CompressionRatioExact(t *testing.T) {
	engine := NewEngine(Lexicon{})

	result, derr := engine.Distill(models.DistillRequest{
		Messages: []models.ConversationMessage{
			msg("user", "Write a summary of this article. Keep it under 100 words. Thanks a lot!"),
			msg("assistant", "Sure, here is the summary you asked for."),
		},
	})
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}

	m := result.Metadata
	if m.OriginalLength <= 0 || m.DistilledLength <= 0 {
		t.Fatalf("Lengths must be positive: %+v", m)
	}
	want := float64(m.DistilledLength) / float64(m.OriginalLength)
	if math.Abs(m.CompressionRatio-want) > 1e-12 {
		t.Errorf("CompressionRatio %v, want %v", m.CompressionRatio, want)
	}
	if m.CompressionRatio <= 0 {
		t.Error("CompressionRatio must be > 0")
	}
	if utf8.RuneCountInString(result.Content) != m.DistilledLength {
		t.Errorf("DistilledLength %d does not match content (%d runes)",
			m.DistilledLength, utf8.RuneCountInString(result.Content))
	}
	if m.QualityScore < 0 || m.QualityScore > 1 {
		t.Errorf("QualityScore %v outside [0,1]", m.QualityScore)
	}
}

func TestDistill_MaxLengthScenario(t *testing.T) {
	engine := NewEngine(Lexicon{})

	result, derr := engine.Distill(models.DistillRequest{
		Messages: []models.ConversationMessage{
			msg("user", "Explain quantum computing"),
			msg("assistant", "Quantum computing uses qubits to represent superposed states and can factor numbers faster."),
		},
		Options: &models.DistillOptions{MaxLength: maxLen(50)},
	})
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}

	if got := utf8.RuneCountInString(result.Content); got > 50 {
		t.Errorf("Content length %d exceeds maxLength 50", got)
	}
	if result.Content == "" {
		t.Error("Truncation must never produce empty content")
	}
	if result.Metadata.DistilledLength != utf8.RuneCountInString(result.Content) {
		t.Error("DistilledLength must report the truncated content's length")
	}
	// Never mid-word: the content must end at a word (or sentence) boundary
	// present in the source.
	last := result.Content[strings.LastIndexFunc(result.Content, func(r rune) bool { return r == ' ' })+1:]
	if last != "" && !strings.Contains("Explain quantum computing Quantum computing uses qubits to represent superposed states and can factor numbers faster.", last) {
		t.Errorf("Content appears cut mid-word: ...%q", last)
	}
}

func TestDistill_Deterministic(t *testing.T) {
	engine := NewEngine(Lexicon{})
	req := models.DistillRequest{
		Messages: []models.ConversationMessage{
			msg("system", "You are a helpful coding assistant."),
			msg("user", "Refactor this function to avoid the bug. Use table-driven tests."),
			msg("assistant", "Sure! Here is the refactored code."),
		},
		Options: &models.DistillOptions{PreserveContext: true, ExtractTechniques: true, MaxLength: maxLen(120)},
	}

	first, derr := engine.Distill(req)
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}
	for i := 0; i < 5; i++ {
		next, derr := engine.Distill(req)
		if derr != nil {
			t.Fatalf("Expected success, got %v", derr)
		}
		if next.Content != first.Content {
			t.Fatalf("Content not deterministic:\n%q\n%q", first.Content, next.Content)
		}
		if !reflect.DeepEqual(next.Tags, first.Tags) {
			t.Fatalf("Tags not deterministic: %v vs %v", first.Tags, next.Tags)
		}
		if next.Metadata.CompressionRatio != first.Metadata.CompressionRatio {
			t.Fatal("Metrics not deterministic")
		}
	}
}

func TestDistill_PreserveContextKeepsLead(t *testing.T) {
	engine := NewEngine(Lexicon{})

	systemPrompt := "You are a strict legal reviewer."
	result, derr := engine.Distill(models.DistillRequest{
		Messages: []models.ConversationMessage{
			msg("system", systemPrompt),
			msg("user", "Review this contract for risky clauses."),
		},
		Options: &models.DistillOptions{PreserveContext: true},
	})
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}
	if !strings.Contains(result.Content, systemPrompt) {
		t.Errorf("Leading system message should survive verbatim, got %q", result.Content)
	}
}

func TestDistill_PreserveContextNoDuplication(t *testing.T) {
	engine := NewEngine(Lexicon{})

	// A multi-sentence lead must not reappear sentence-by-sentence after its
	// verbatim copy.
	result, derr := engine.Distill(models.DistillRequest{
		Messages: []models.ConversationMessage{
			msg("system", "You are a strict reviewer. Always cite the clause."),
			msg("user", "Review this contract."),
		},
		Options: &models.DistillOptions{PreserveContext: true},
	})
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}

	for _, sentence := range []string{"You are a strict reviewer.", "Always cite the clause."} {
		if got := strings.Count(result.Content, sentence); got != 1 {
			t.Errorf("Lead sentence %q appears %d times in %q, want 1", sentence, got, result.Content)
		}
	}
	if !strings.Contains(result.Content, "Review this contract.") {
		t.Errorf("User turn should still be selected: %q", result.Content)
	}
}

func TestDistill_ExtractTechniquesDropsFiller(t *testing.T) {
	engine := NewEngine(Lexicon{})

	result, derr := engine.Distill(models.DistillRequest{
		Messages: []models.ConversationMessage{
			msg("user", "Thanks, sounds good!"),
			msg("user", "Always include examples. Never use passive voice."),
		},
		Options: &models.DistillOptions{ExtractTechniques: true},
	})
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}
	if strings.Contains(result.Content, "Thanks") {
		t.Errorf("Filler should be dropped when extracting techniques: %q", result.Content)
	}
	if !strings.Contains(result.Content, "Always include examples.") {
		t.Errorf("Instruction sentences should be kept: %q", result.Content)
	}
}

func TestDistill_FillerOnlyFallsBack(t *testing.T) {
	engine := NewEngine(Lexicon{})

	// Everything scores as filler, but a non-empty input must still yield
	// non-empty content.
	result, derr := engine.Distill(models.DistillRequest{
		Messages: []models.ConversationMessage{msg("user", "Thanks, sounds good!")},
		Options:  &models.DistillOptions{ExtractTechniques: true},
	})
	if derr != nil {
		t.Fatalf("Expected fallback success, got %v", derr)
	}
	if result.Content == "" {
		t.Fatal("Content must never be empty on success")
	}
}

func TestDistill_Variations(t *testing.T) {
	engine := NewEngine(Lexicon{})
	req := models.DistillRequest{
		Messages: []models.ConversationMessage{msg("user", "Summarize the meeting notes into action items.")},
	}

	result, derr := engine.Distill(req)
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}
	if len(result.Variations) != 0 {
		t.Errorf("Variations must be absent unless requested, got %d", len(result.Variations))
	}

	req.Options = &models.DistillOptions{GenerateVariations: true}
	result, derr = engine.Distill(req)
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}
	if len(result.Variations) == 0 {
		t.Fatal("Expected variations when requested")
	}
	for _, v := range result.Variations {
		if !strings.Contains(v, result.Content) {
			t.Errorf("Variation should carry the same payload: %q", v)
		}
	}
}

func TestDistill_TagsDedupedAndSorted(t *testing.T) {
	engine := NewEngine(Lexicon{})

	result, derr := engine.Distill(models.DistillRequest{
		Messages: []models.ConversationMessage{
			msg("user", "Write a SQL query over this dataset and explain the code."),
			msg("assistant", "The query joins both tables in the dataset."),
		},
	})
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}

	seen := make(map[string]bool)
	for i, tag := range result.Tags {
		if seen[tag] {
			t.Errorf("Duplicate tag %q", tag)
		}
		seen[tag] = true
		if i > 0 && result.Tags[i-1] > tag {
			t.Errorf("Tags not sorted: %v", result.Tags)
		}
	}
	if !seen["data"] {
		t.Errorf("Expected data tag, got %v", result.Tags)
	}
}

func TestDistill_ConversationIDTraceability(t *testing.T) {
	engine := NewEngine(Lexicon{})

	result, derr := engine.Distill(models.DistillRequest{
		ConversationID: "conv-42",
		Messages:       []models.ConversationMessage{msg("user", "Explain how DNS resolution works.")},
	})
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}
	if result.Metadata.ConversationID != "conv-42" {
		t.Errorf("ConversationID must be carried through unchanged, got %q", result.Metadata.ConversationID)
	}
}

// Serializing a DistillResult to JSON and parsing it back yields
// field-for-field equality (no lossy numeric formatting).
func TestDistillResult_JSONRoundTrip(t *testing.T) {
	engine := NewEngine(Lexicon{})

	result, derr := engine.Distill(models.DistillRequest{
		ConversationID: "conv-7",
		Messages: []models.ConversationMessage{
			msg("user", "Draft a blog post outline about unit testing. Include examples."),
		},
		Options: &models.DistillOptions{GenerateVariations: true, MaxLength: maxLen(200)},
	})
	if derr != nil {
		t.Fatalf("Expected success, got %v", derr)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var parsed models.DistillResult
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(*result, parsed) {
		t.Errorf("Round-trip mismatch:\n%+v\n%+v", *result, parsed)
	}
}
