package distill

import (
	"reflect"
	"testing"
)

func TestDetectVariables(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "no variables",
			content: "Summarize the following article.",
			want:    nil,
		},
		{
			name:    "single variable",
			content: "Translate {{text}} into French.",
			want:    []string{"text"},
		},
		{
			name:    "duplicates collapse keeping first-seen order",
			content: "Rewrite {{draft}} for {{audience}}, keeping {{draft}} structure.",
			want:    []string{"draft", "audience"},
		},
		{
			name:    "whitespace inside braces",
			content: "Use {{ tone }} throughout.",
			want:    []string{"tone"},
		},
		{
			name:    "malformed braces ignored",
			content: "Keep { this } and {{123bad}} and {{}} untouched.",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectVariables(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectVariables(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}
