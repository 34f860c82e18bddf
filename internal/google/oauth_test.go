package google

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateAccountName(t *testing.T) {
	tests := []struct {
		name    string
		account string
		wantErr bool
	}{
		{"valid default", "default", false},
		{"valid work", "work", false},
		{"valid with hyphen", "work-email", false},
		{"valid with underscore", "personal_email", false},
		{"valid alphanumeric", "account123", false},
		{"empty", "", true},
		{"with spaces", "my account", true},
		{"with special chars", "account@work", true},
		{"with slash", "work/personal", true},
		{"with dot", "work.email", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAccountName(tt.account)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAccountName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetTokenFilePath(t *testing.T) {
	tests := []struct {
		name    string
		account string
		want    string
	}{
		{"default account", "default", "google-default.token"},
		{"work account", "work", "google-work.token"},
		{"personal account", "personal", "google-personal.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := getTokenFilePath(tt.account)
			if filepath.Base(got) != tt.want {
				t.Errorf("getTokenFilePath() = %v, want base %v", got, tt.want)
			}
		})
	}
}

func TestHasTokenForAccountInvalidName(t *testing.T) {
	if HasTokenForAccount("invalid account") {
		t.Error("HasTokenForAccount() should reject invalid account names")
	}
}

func TestGetOAuthConfigRedirectDefault(t *testing.T) {
	t.Setenv("GOOGLE_REDIRECT_URI", "")
	conf := GetOAuthConfig()
	if conf.RedirectURL != OOB {
		t.Errorf("RedirectURL = %v, want out-of-band default", conf.RedirectURL)
	}

	t.Setenv("GOOGLE_REDIRECT_URI", "http://127.0.0.1:8000/auth/callback")
	conf = GetOAuthConfig()
	if conf.RedirectURL != "http://127.0.0.1:8000/auth/callback" {
		t.Errorf("RedirectURL = %v, want env override", conf.RedirectURL)
	}
}

// fakeTokenStore records saves for asserting refresh persistence.
type fakeTokenStore struct {
	records map[string]*TokenRecord
	saved   int
}

func (f *fakeTokenStore) GetToken(_ context.Context, account string) (*TokenRecord, error) {
	rec, ok := f.records[account]
	if !ok {
		return nil, context.Canceled // any error will do for the provider
	}
	return rec, nil
}

func (f *fakeTokenStore) SaveToken(_ context.Context, account string, rec *TokenRecord) error {
	f.records[account] = rec
	f.saved++
	return nil
}

func TestStoreTokenProviderHasToken(t *testing.T) {
	store := &fakeTokenStore{records: map[string]*TokenRecord{
		"alice@example.com": {
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour),
		},
	}}
	provider := NewStoreTokenProvider(store)

	if !provider.HasTokenForAccount("alice@example.com") {
		t.Error("expected token for alice@example.com")
	}
	if provider.HasTokenForAccount("bob@example.com") {
		t.Error("expected no token for bob@example.com")
	}
}

func TestStoreTokenProviderValidTokenIsNotRewritten(t *testing.T) {
	store := &fakeTokenStore{records: map[string]*TokenRecord{
		"alice@example.com": {
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour),
		},
	}}
	provider := NewStoreTokenProvider(store)

	token, err := provider.GetTokenForAccount(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetTokenForAccount() error = %v", err)
	}
	if token.AccessToken != "access" {
		t.Errorf("AccessToken = %v, want access", token.AccessToken)
	}
	if store.saved != 0 {
		t.Errorf("valid token was re-persisted %d times", store.saved)
	}
}
