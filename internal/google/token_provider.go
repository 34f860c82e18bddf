package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// TokenProvider is an interface for providing OAuth tokens for Google
// APIs. This abstraction allows different token sources (file-based for
// the CLI, store-based for the HTTP server).
type TokenProvider interface {
	// GetTokenForAccount retrieves an OAuth token for the specified account
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount checks if a token exists for the specified account
	HasTokenForAccount(account string) bool
}

// FileTokenProvider provides tokens from disk files.
type FileTokenProvider struct{}

// NewFileTokenProvider creates a new file-based token provider.
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// GetTokenForAccount retrieves a token from disk for the specified account.
func (p *FileTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	ts, err := GetTokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get token from file: %w", err)
	}
	return token, nil
}

// HasTokenForAccount checks if a token file exists for the specified account.
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return HasTokenForAccount(account)
}

// TokenRecord is a persisted OAuth token. The account key is the user's
// email address in server mode.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenStore persists OAuth tokens per account. Implemented by the
// SQLite store.
type TokenStore interface {
	GetToken(ctx context.Context, account string) (*TokenRecord, error)
	SaveToken(ctx context.Context, account string, rec *TokenRecord) error
}

// StoreTokenProvider provides tokens from a TokenStore and writes
// refreshed tokens back, so a refresh performed by one request benefits
// the next.
type StoreTokenProvider struct {
	store TokenStore
}

// NewStoreTokenProvider creates a token provider backed by the given store.
func NewStoreTokenProvider(store TokenStore) *StoreTokenProvider {
	return &StoreTokenProvider{store: store}
}

// GetTokenForAccount loads the account's token from the store,
// refreshing and re-persisting it when expired.
func (p *StoreTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	rec, err := p.store.GetToken(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to load token for account %s: %w", account, err)
	}

	stored := &oauth2.Token{
		AccessToken:  rec.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: rec.RefreshToken,
		Expiry:       rec.Expiry,
	}

	ts := GetOAuthConfig().TokenSource(ctx, stored)
	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token for account %s: %w", account, err)
	}

	if token.AccessToken != rec.AccessToken {
		refreshed := &TokenRecord{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			Expiry:       token.Expiry,
		}
		if refreshed.RefreshToken == "" {
			refreshed.RefreshToken = rec.RefreshToken
		}
		if err := p.store.SaveToken(ctx, account, refreshed); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token for account %s: %w", account, err)
		}
	}
	return token, nil
}

// HasTokenForAccount checks if the store holds a token for the account.
func (p *StoreTokenProvider) HasTokenForAccount(account string) bool {
	rec, err := p.store.GetToken(context.Background(), account)
	return err == nil && rec != nil
}
