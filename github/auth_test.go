package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func newTestAuthenticator(t *testing.T, appID int64, handler http.HandlerFunc) *Authenticator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	auth := NewAuthenticator(appID, testKey(t), server.URL+"/app/installations/%d/access_tokens")
	auth.httpClient = server.Client()
	return auth
}

func TestMintAssertionClaims(t *testing.T) {
	key := testKey(t)
	auth := NewAuthenticator(12345, key, "https://example.invalid/%d")
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issued }

	signed, err := auth.MintAssertion(context.Background())
	if err != nil {
		t.Fatalf("MintAssertion() error = %v", err)
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodRS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Method)
		}
		return &key.PublicKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return issued }))
	if err != nil {
		t.Fatalf("parsing assertion: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("assertion is not valid")
	}
	if claims.Issuer != "12345" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "12345")
	}
	if !claims.IssuedAt.Time.Equal(issued) {
		t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt.Time, issued)
	}
	if want := issued.Add(10 * time.Minute); !claims.ExpiresAt.Time.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, want)
	}
}

func TestInstallationTokenCaching(t *testing.T) {
	var exchanges atomic.Int64
	auth := newTestAuthenticator(t, 1, func(w http.ResponseWriter, r *http.Request) {
		n := exchanges.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github.v3+json" {
			t.Errorf("Accept = %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"token":"ghs_token_%d"}`, n)
	})

	now := time.Now()
	auth.now = func() time.Time { return now }

	first, err := auth.InstallationToken(context.Background(), 42)
	if err != nil {
		t.Fatalf("InstallationToken() error = %v", err)
	}
	second, err := auth.InstallationToken(context.Background(), 42)
	if err != nil {
		t.Fatalf("InstallationToken() error = %v", err)
	}
	if first != second {
		t.Errorf("cached token changed: %q then %q", first, second)
	}
	if got := exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}

	// Distinct installations never share tokens.
	other, err := auth.InstallationToken(context.Background(), 43)
	if err != nil {
		t.Fatalf("InstallationToken() error = %v", err)
	}
	if other == first {
		t.Error("distinct installations returned the same token")
	}
	if got := exchanges.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}

	// After 50 minutes the cached entry is stale and refreshed.
	now = now.Add(50 * time.Minute)
	refreshed, err := auth.InstallationToken(context.Background(), 42)
	if err != nil {
		t.Fatalf("InstallationToken() error = %v", err)
	}
	if refreshed == first {
		t.Error("stale token was served after TTL expiry")
	}
	if got := exchanges.Load(); got != 3 {
		t.Errorf("exchanges = %d, want 3", got)
	}
}

func TestInstallationTokenSingleFlight(t *testing.T) {
	var exchanges atomic.Int64
	release := make(chan struct{})
	auth := newTestAuthenticator(t, 1, func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		<-release
		fmt.Fprint(w, `{"token":"ghs_shared"}`)
	})

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = auth.InstallationToken(context.Background(), 42)
		}(i)
	}

	// Give the goroutines time to pile onto the in-flight exchange.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if tokens[i] != "ghs_shared" {
			t.Errorf("caller %d token = %q, want ghs_shared", i, tokens[i])
		}
	}
	if got := exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}
}

func TestInstallationTokenExchangeFailure(t *testing.T) {
	auth := newTestAuthenticator(t, 1, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	_, err := auth.InstallationToken(context.Background(), 42)
	if err == nil {
		t.Fatal("InstallationToken() error = nil, want error")
	}
	var te *TokenError
	if !errors.As(err, &te) {
		t.Fatalf("error = %T, want *TokenError", err)
	}
	if te.InstallationID != 42 {
		t.Errorf("InstallationID = %d, want 42", te.InstallationID)
	}

	// Failures are not cached.
	if _, ok := auth.cachedToken(42); ok {
		t.Error("failed exchange left a cache entry")
	}
}

func TestInstallationTokenEmptyToken(t *testing.T) {
	auth := newTestAuthenticator(t, 1, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token":""}`)
	})

	_, err := auth.InstallationToken(context.Background(), 7)
	var te *TokenError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TokenError", err)
	}
}
