package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	// assertionTTL is the lifetime of the signed App assertion.
	// GitHub rejects assertions valid for more than 10 minutes.
	assertionTTL = 10 * time.Minute

	// tokenTTL is how long an installation token is served from cache.
	// GitHub's tokens last about an hour; caching for 50 minutes avoids
	// handing out near-expiry tokens.
	tokenTTL = 50 * time.Minute

	// exchangeTimeout bounds a single token exchange call.
	exchangeTimeout = 10 * time.Second
)

// TokenError indicates an installation token exchange failed. The
// Authenticator does not retry; callers decide whether the saga step does.
type TokenError struct {
	InstallationID int64
	Err            error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("failed to acquire installation token for %d: %v", e.InstallationID, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

type cachedToken struct {
	value    string
	acquired time.Time
}

// Authenticator proves App identity to GitHub and exchanges signed
// assertions for per-installation access tokens. Tokens are cached per
// installation; concurrent misses for the same installation are coalesced
// into a single outbound exchange. Safe for concurrent use.
type Authenticator struct {
	appID      int64
	privateKey *rsa.PrivateKey
	tokenURL   string // printf template with one %d for the installation ID
	httpClient *http.Client

	mu     sync.RWMutex
	tokens map[int64]cachedToken
	group  singleflight.Group

	now func() time.Time
}

// NewAuthenticator creates an Authenticator for the given App credential.
// tokenURL is a template containing one %d placeholder for the installation
// ID, e.g. "https://api.github.com/app/installations/%d/access_tokens".
func NewAuthenticator(appID int64, privateKey *rsa.PrivateKey, tokenURL string) *Authenticator {
	return &Authenticator{
		appID:      appID,
		privateKey: privateKey,
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: exchangeTimeout},
		tokens:     make(map[int64]cachedToken),
		now:        time.Now,
	}
}

// MintAssertion signs a fresh App assertion: issuer is the App ID, issued-at
// is now, expiry is now plus ten minutes. Pure function of the clock and the
// static key; the assertion is never persisted.
func (a *Authenticator) MintAssertion(ctx context.Context) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(a.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	var signed string
	var signErr error
	if err := withCryptoGate(ctx, func() {
		signed, signErr = token.SignedString(a.privateKey)
	}); err != nil {
		return "", err
	}
	if signErr != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", signErr)
	}
	return signed, nil
}

// InstallationToken returns an access token for the installation, serving
// from cache when a token acquired within the last 50 minutes exists.
// Concurrent callers during a cold cache observe the same in-flight
// exchange; exactly one outbound call is made per fill.
func (a *Authenticator) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	if token, ok := a.cachedToken(installationID); ok {
		return token, nil
	}

	value, err, _ := a.group.Do(strconv.FormatInt(installationID, 10), func() (any, error) {
		// Re-check under the flight: a previous winner may have filled it.
		if token, ok := a.cachedToken(installationID); ok {
			return token, nil
		}

		token, err := a.exchange(ctx, installationID)
		if err != nil {
			return "", &TokenError{InstallationID: installationID, Err: err}
		}

		a.mu.Lock()
		a.tokens[installationID] = cachedToken{value: token, acquired: a.now()}
		a.mu.Unlock()

		return token, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (a *Authenticator) cachedToken(installationID int64) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.tokens[installationID]
	if !ok || a.now().Sub(entry.acquired) >= tokenTTL {
		return "", false
	}
	return entry.value, true
}

// exchange mints an assertion and trades it for an installation token.
func (a *Authenticator) exchange(ctx context.Context, installationID int64) (string, error) {
	assertion, err := a.MintAssertion(ctx)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf(a.tokenURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token exchange returned status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("token exchange returned an empty token")
	}

	return tr.Token, nil
}
