package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateRetentionSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		days     int
		wantErr  bool
	}{
		{"default schedule", "0 3 * * *", 180, false},
		{"every hour", "0 * * * *", 30, false},
		{"garbage expression", "whenever", 180, true},
		{"too many fields", "0 3 * * * *", 180, true},
		{"negative retention", "0 3 * * *", -1, true},
		{"zero retention disables cleanup", "0 3 * * *", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				RetentionSchedule:  tt.schedule,
				EventRetentionDays: tt.days,
			}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadLexiconDefault(t *testing.T) {
	lex, err := LoadLexicon("")
	if err != nil {
		t.Fatalf("LoadLexicon(\"\") returned error: %v", err)
	}
	if len(lex.Signals) == 0 || len(lex.Fillers) == 0 || len(lex.Topics) == 0 {
		t.Error("default lexicon should have signals, fillers and topics")
	}
}

func TestLoadLexiconFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	content := `signals:
  - must
  - always
fillers:
  - um
topics:
  devops:
    - kubernetes
    - terraform
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	lex, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("LoadLexicon returned error: %v", err)
	}
	if len(lex.Signals) != 2 {
		t.Errorf("expected 2 signals, got %d", len(lex.Signals))
	}
	if len(lex.Topics["devops"]) != 2 {
		t.Errorf("expected 2 devops keywords, got %d", len(lex.Topics["devops"]))
	}
}

func TestLoadLexiconBadFile(t *testing.T) {
	if _, err := LoadLexicon("/nonexistent/lexicon.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("signals: {not: [valid"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := LoadLexicon(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
