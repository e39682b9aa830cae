package auth

import (
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer", "Bearer abc123", "abc123", false},
		{"case insensitive scheme", "bearer abc123", "abc123", false},
		{"empty header", "", "", true},
		{"missing token", "Bearer ", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"no scheme", "abc123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Errorf("ExtractToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a, err := NewLocalJWTAuth("test-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewLocalJWTAuth failed: %v", err)
	}

	access, refresh, err := a.GenerateTokens("user-1", "u@example.com", "ws-1", "user")
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}

	user, err := a.VerifyAccessToken(access)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}
	if user.ID != "user-1" || user.Email != "u@example.com" || user.WorkspaceID != "ws-1" || user.Role != "user" {
		t.Errorf("unexpected user from access token: %+v", user)
	}

	claims, err := a.VerifyRefreshToken(refresh)
	if err != nil {
		t.Fatalf("VerifyRefreshToken failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.TokenID == "" {
		t.Errorf("unexpected refresh claims: %+v", claims)
	}
}

func TestVerifyAccessTokenRejectsWrongKey(t *testing.T) {
	a1, _ := NewLocalJWTAuth("secret-one", time.Minute, time.Hour)
	a2, _ := NewLocalJWTAuth("secret-two", time.Minute, time.Hour)

	access, _, err := a1.GenerateTokens("user-1", "u@example.com", "", "user")
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}

	if _, err := a2.VerifyAccessToken(access); err == nil {
		t.Error("token signed with another key should be rejected")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	a, _ := NewLocalJWTAuth("test-secret", 0, 0)

	hash, err := a.HashPassword("Sup3rSecret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	ok, err := a.VerifyPassword(hash, "Sup3rSecret")
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if !ok {
		t.Error("correct password should verify")
	}

	ok, err = a.VerifyPassword(hash, "WrongPassword1")
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if ok {
		t.Error("wrong password should not verify")
	}
}

func TestVerifyPasswordRejectsBadFormat(t *testing.T) {
	a, _ := NewLocalJWTAuth("test-secret", 0, 0)

	if _, err := a.VerifyPassword("plaintext", "whatever"); err == nil {
		t.Error("expected error for hash without argon2id prefix")
	}
	if _, err := a.VerifyPassword("argon2id$onlyonepart", "whatever"); err == nil {
		t.Error("expected error for truncated hash")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"Sup3rSecret", false},
		{"short1A", true},
		{"alllowercase1", true},
		{"ALLUPPERCASE1", true},
		{"NoNumbersHere", true},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}
