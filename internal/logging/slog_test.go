package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestAnonymizeEmail(t *testing.T) {
	hash := AnonymizeEmail("ana@example.com")

	if !strings.HasPrefix(hash, "user:") {
		t.Errorf("expected user: prefix, got %q", hash)
	}
	if strings.Contains(hash, "ana") || strings.Contains(hash, "example.com") {
		t.Errorf("hash leaks the address: %q", hash)
	}
	if hash != AnonymizeEmail("ana@example.com") {
		t.Error("expected stable hash for the same address")
	}
	if hash == AnonymizeEmail("bob@example.com") {
		t.Error("expected different hashes for different addresses")
	}
	if AnonymizeEmail("") != "" {
		t.Error("expected empty result for empty email")
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("boom"))
	if attr.Key != KeyError {
		t.Errorf("expected key %q, got %q", KeyError, attr.Key)
	}
	if attr.Value.String() != "boom" {
		t.Errorf("expected value 'boom', got %q", attr.Value.String())
	}

	// A nil error yields an empty group that slog omits.
	attr = Err(nil)
	if attr.Value.Kind() != slog.KindGroup {
		t.Errorf("expected empty group for nil error, got %v", attr.Value.Kind())
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(""); got != "<empty>" {
		t.Errorf("expected <empty>, got %q", got)
	}
	got := SanitizeToken("ya29.secret-token")
	if strings.Contains(got, "secret") {
		t.Errorf("sanitized token leaks content: %q", got)
	}
	if got != "[token:17 chars]" {
		t.Errorf("unexpected format: %q", got)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"ana@example.com", "example.com"},
		{"", ""},
		{"not-an-email", ""},
		{"two@at@signs", ""},
	}

	for _, tt := range tests {
		if got := ExtractDomain(tt.email); got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}
