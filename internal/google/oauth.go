package google

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OOB is the out-of-band redirect URI used for CLI authorization, where
// the user pastes the code back into the terminal.
const OOB = "urn:ietf:wg:oauth:2.0:oob"

var accountNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateAccountName rejects account names that could escape the token
// cache directory or produce surprising file names.
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNameRe.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, hyphen and underscore are allowed", account)
	}
	return nil
}

// GetOAuthConfig returns the OAuth2 configuration for the Google
// services slotwise talks to. Client credentials come from the
// environment; the redirect URI defaults to the out-of-band flow for
// CLI usage.
func GetOAuthConfig() *oauth2.Config {
	redirect := os.Getenv("GOOGLE_REDIRECT_URI")
	if redirect == "" {
		redirect = OOB
	}
	return &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
		Scopes:       DefaultOAuthScopes,
	}
}

// GetAuthURL returns the OAuth consent URL for user authorization.
func GetAuthURL(state string) string {
	conf := GetOAuthConfig()
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token.
func Exchange(ctx context.Context, authCode string) (*oauth2.Token, error) {
	conf := GetOAuthConfig()
	t, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return t, nil
}

// SaveTokenForAccount exchanges an authorization code and caches the
// resulting token on disk for the given account.
func SaveTokenForAccount(ctx context.Context, account, authCode string) error {
	t, err := Exchange(ctx, authCode)
	if err != nil {
		return err
	}
	return CacheToken(account, t)
}

// CacheToken writes an already-issued token to the account's cache file.
func CacheToken(account string, t *oauth2.Token) error {
	if err := validateAccountName(account); err != nil {
		return err
	}

	tokenFile := getTokenFilePath(account)
	if err := os.MkdirAll(filepath.Dir(tokenFile), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tokenData := t.AccessToken + " " + t.RefreshToken
	if err := os.WriteFile(tokenFile, []byte(tokenData), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// RemoveTokenForAccount deletes the cached token file for the account.
// Removing an account that has no cached token is not an error.
func RemoveTokenForAccount(account string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	if err := os.Remove(getTokenFilePath(account)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// HasTokenForAccount checks if a cached token file exists for the account.
func HasTokenForAccount(account string) bool {
	if err := validateAccountName(account); err != nil {
		return false
	}
	_, err := os.ReadFile(getTokenFilePath(account))
	return err == nil
}

// GetTokenSourceForAccount returns an OAuth2 token source for the
// account's cached token. The source refreshes automatically.
func GetTokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}

	conf := GetOAuthConfig()

	slurp, err := os.ReadFile(getTokenFilePath(account))
	if err != nil {
		return nil, fmt.Errorf("no Google OAuth token found for account %s", account)
	}

	f := strings.Fields(strings.TrimSpace(string(slurp)))
	if len(f) != 2 {
		return nil, fmt.Errorf("invalid token format for account %s", account)
	}

	ts := conf.TokenSource(ctx, &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	})

	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("cached token for account %s is invalid: %w", account, err)
	}
	return ts, nil
}

// NewHTTPClient returns an HTTP client authenticated with the given
// token source. The client is pinned to HTTP/1.1 to avoid HTTP/2
// protocol errors against the Google APIs.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}
	return client
}

// getTokenFilePath returns the on-disk location of the account's token.
func getTokenFilePath(account string) string {
	return filepath.Join(userCacheDir(), "slotwise", fmt.Sprintf("google-%s.token", account))
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		panic("No Windows TEMP or TMP environment variables found")
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
