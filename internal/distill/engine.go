// Package distill turns a captured conversation into a reusable prompt.
// The engine is pure and deterministic: rule-based sentence scoring against
// a lexicon, sentence-boundary truncation, and metrics recomputed from the
// final content on every call. Persistence and event emission belong to the
// caller.
package distill

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"distill/internal/models"
)

const (
	maxTitleLength = 60
	variationCap   = 2
)

// Engine distills conversations using a scoring lexicon. Safe for
// concurrent use; the lexicon is read-only after construction.
type Engine struct {
	lex Lexicon
}

// NewEngine creates an engine with the given lexicon. A zero lexicon falls
// back to the built-in default.
func NewEngine(lex Lexicon) *Engine {
	if len(lex.Signals) == 0 && len(lex.Fillers) == 0 && len(lex.Topics) == 0 {
		lex = DefaultLexicon()
	}
	return &Engine{lex: lex}
}

// sentence is one scored unit of conversation content.
type sentence struct {
	text   string
	role   string
	score  int
	weight int // max(score,0)+1; quality denominator
}

// Distill transforms a request into a result, or a typed error. Repeated
// calls with identical input produce identical content.
func (e *Engine) Distill(req models.DistillRequest) (*models.DistillResult, *Error) {
	if len(req.Messages) == 0 {
		return nil, newError(ErrorKindEmptyInput, "messages must be non-empty")
	}

	opts := models.DistillOptions{}
	if req.Options != nil {
		opts = *req.Options
	}
	maxLength := 0 // unset; truncate treats 0 as no cap
	if opts.MaxLength != nil {
		if *opts.MaxLength <= 0 {
			return nil, newError(ErrorKindInvalidOptions, "maxLength must be a positive integer, got %d", *opts.MaxLength)
		}
		maxLength = *opts.MaxLength
	}

	transcript, originalLength := buildTranscript(req.Messages)
	if originalLength == 0 {
		return nil, newError(ErrorKindEmptyInput, "messages contain no content")
	}

	sentences := e.scoreSentences(req.Messages)
	totalWeight := 0
	for _, s := range sentences {
		totalWeight += s.weight
	}

	content := e.assemble(req.Messages, sentences, opts)
	content, truncated := truncate(content, maxLength)
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, newError(ErrorKindDegenerateResult, "distillation produced empty content")
	}

	distilledLength := utf8.RuneCountInString(content)

	result := &models.DistillResult{
		PromptID: uuid.NewString(),
		Title:    deriveTitle(req.Messages),
		Content:  content,
		Tags:     e.deriveTags(transcript),
		Metadata: models.DistillMetadata{
			OriginalLength:   originalLength,
			DistilledLength:  distilledLength,
			CompressionRatio: float64(distilledLength) / float64(originalLength),
			QualityScore:     qualityScore(content, sentences, totalWeight),
			Truncated:        truncated,
			Model:            opts.Model,
			ConversationID:   req.ConversationID,
		},
	}

	if opts.GenerateVariations {
		result.Variations = variations(content)
	}

	return result, nil
}

// buildTranscript concatenates message contents in order, tagged by role.
// The returned length (runes) is the originalLength baseline; messages with
// empty content contribute nothing, so an all-empty conversation measures 0.
func buildTranscript(messages []models.ConversationMessage) (string, int) {
	var b strings.Builder
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	transcript := b.String()
	return transcript, utf8.RuneCountInString(transcript)
}

func (e *Engine) scoreSentences(messages []models.ConversationMessage) []sentence {
	var out []sentence
	for _, m := range messages {
		for _, raw := range splitSentences(m.Content) {
			text := strings.TrimSpace(raw)
			if text == "" || !hasAlnum(text) {
				continue
			}
			score := e.scoreSentence(text)
			out = append(out, sentence{
				text:   text,
				role:   m.Role,
				score:  score,
				weight: max(score, 0) + 1,
			})
		}
	}
	return out
}

func (e *Engine) scoreSentence(text string) int {
	lower := strings.ToLower(text)
	score := 0

	for _, sig := range e.lex.Signals {
		if strings.Contains(lower, sig) {
			score++
		}
	}
	for _, fil := range e.lex.Fillers {
		if strings.Contains(lower, fil) {
			score--
		}
	}

	// Structural markers: enumerations and labeled constraints read as
	// instructions even without lexicon hits.
	if strings.Contains(text, ":") {
		score++
	}
	if len(lower) > 1 && (unicode.IsDigit(rune(lower[0])) || strings.HasPrefix(lower, "- ")) {
		score++
	}

	return score
}

// assemble picks the signal subset per the requested options and joins it
// into the distilled content.
func (e *Engine) assemble(messages []models.ConversationMessage, sentences []sentence, opts models.DistillOptions) string {
	threshold := 0
	if opts.ExtractTechniques {
		// Prioritize instruction/example content over conversational filler.
		threshold = 1
	}

	var parts []string
	seen := make(map[string]bool)

	if opts.PreserveContext {
		// Keep one leading system or user message verbatim for grounding.
		// Its individual sentences count as seen too, or the selection loop
		// below would re-append them.
		if lead := leadingContext(messages); lead != "" {
			parts = append(parts, lead)
			seen[lead] = true
			for _, s := range splitSentences(lead) {
				seen[strings.TrimSpace(s)] = true
			}
		}
	}

	for _, s := range sentences {
		if s.score < threshold {
			continue
		}
		if seen[s.text] {
			continue
		}
		parts = append(parts, s.text)
		seen[s.text] = true
	}

	// Selection can empty out when everything scores as filler; fall back to
	// the first substantive user turn so a non-empty input never degenerates.
	if len(parts) == 0 {
		for _, m := range messages {
			if m.Role == models.RoleUser && strings.TrimSpace(m.Content) != "" {
				parts = append(parts, strings.TrimSpace(m.Content))
				break
			}
		}
	}
	if len(parts) == 0 {
		for _, m := range messages {
			if strings.TrimSpace(m.Content) != "" {
				parts = append(parts, strings.TrimSpace(m.Content))
				break
			}
		}
	}

	return strings.Join(parts, " ")
}

func leadingContext(messages []models.ConversationMessage) string {
	for _, m := range messages {
		if m.Role == models.RoleSystem && strings.TrimSpace(m.Content) != "" {
			return strings.TrimSpace(m.Content)
		}
	}
	for _, m := range messages {
		if m.Role == models.RoleUser && strings.TrimSpace(m.Content) != "" {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

// truncate enforces maxLength (runes) at a sentence boundary, falling back
// to the last word boundary when even the first sentence exceeds the cap.
// Never cuts mid-word.
func truncate(content string, maxLength int) (string, bool) {
	if maxLength <= 0 || utf8.RuneCountInString(content) <= maxLength {
		return content, false
	}

	var b strings.Builder
	used := 0
	for _, s := range splitSentences(content) {
		n := utf8.RuneCountInString(s)
		if used+n > maxLength {
			break
		}
		b.WriteString(s)
		used += n
	}
	out := strings.TrimSpace(b.String())
	if out != "" {
		return out, true
	}

	// First sentence alone exceeds the cap: cut at the last word boundary
	// that fits.
	runes := []rune(content)
	cut := runes[:maxLength]
	if idx := lastSpace(cut); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(string(cut)), true
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// qualityScore is retained-signal over total-signal, in [0,1]. Retaining
// more signal at equal length never lowers the score.
func qualityScore(content string, sentences []sentence, totalWeight int) float64 {
	if totalWeight == 0 {
		return 0
	}
	retained := 0
	for _, s := range sentences {
		if strings.Contains(content, s.text) {
			retained += s.weight
		}
	}
	q := float64(retained) / float64(totalWeight)
	if q > 1 {
		q = 1
	}
	return q
}

// variations produces deterministic alternate phrasings of the same payload.
func variations(content string) []string {
	v := []string{
		"Instructions:\n" + content,
		"Your task: " + content,
	}
	return v[:variationCap]
}

func (e *Engine) deriveTags(transcript string) []string {
	lower := strings.ToLower(transcript)
	set := make(map[string]bool)
	for tag, keywords := range e.lex.Topics {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				set[tag] = true
				break
			}
		}
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func deriveTitle(messages []models.ConversationMessage) string {
	for _, m := range messages {
		if m.Role != models.RoleUser {
			continue
		}
		text := strings.Join(strings.Fields(m.Content), " ")
		if text == "" {
			continue
		}
		if s := splitSentences(text); len(s) > 0 {
			text = strings.TrimSpace(s[0])
		}
		if utf8.RuneCountInString(text) > maxTitleLength {
			runes := []rune(text)[:maxTitleLength]
			if idx := lastSpace(runes); idx > 0 {
				runes = runes[:idx]
			}
			text = string(runes)
		}
		if text != "" {
			return text
		}
	}
	return "Distilled prompt"
}

// splitSentences splits on sentence terminators and newlines, keeping the
// terminator with its sentence so re-joining is lossless.
func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			s := string(runes[start : i+1])
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		s := string(runes[start:])
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasAlnum(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
