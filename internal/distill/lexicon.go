package distill

// Lexicon drives sentence scoring and tag extraction. It is loaded from the
// lexicon YAML at boot (see internal/config); the default below keeps the
// engine usable without one.
type Lexicon struct {
	// Signals mark instruction-bearing sentences.
	Signals []string `yaml:"signals"`
	// Fillers mark conversational padding to drop.
	Fillers []string `yaml:"fillers"`
	// Topics maps a tag name to the keywords that trigger it.
	Topics map[string][]string `yaml:"topics"`
}

// DefaultLexicon returns the built-in scoring lexicon.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Signals: []string{
			"must", "should", "always", "never", "ensure", "avoid",
			"use", "write", "create", "explain", "include", "format",
			"list", "summarize", "generate", "translate", "step",
			"example", "e.g.", "for example", "output", "act as",
			"you are", "do not", "don't", "respond", "return",
		},
		Fillers: []string{
			"thanks", "thank you", "sure", "sounds good", "great",
			"awesome", "hello", "hi there", "got it", "no problem",
			"of course", "perfect", "you're welcome", "my pleasure",
			"glad to help", "happy to help",
		},
		Topics: map[string][]string{
			"coding":    {"code", "function", "bug", "compile", "refactor", "api", "python", "javascript", "golang"},
			"writing":   {"essay", "article", "blog", "paragraph", "tone", "rewrite", "draft"},
			"analysis":  {"analyze", "analysis", "compare", "evaluate", "pros and cons", "trade-off"},
			"data":      {"dataset", "csv", "sql", "query", "table", "spreadsheet"},
			"learning":  {"explain", "teach", "understand", "quantum", "concept", "beginner"},
			"marketing": {"campaign", "audience", "seo", "brand", "copy", "headline"},
		},
	}
}
