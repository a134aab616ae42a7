package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	diffTimeout  = 30 * time.Second
	diffAttempts = 3
	retryDelay   = 2 * time.Second
)

// UpstreamError indicates GitHub answered a content request with a
// non-success status. 4xx statuses are definitive and never retried.
type UpstreamError struct {
	Status int
	URL    string
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github returned status %d for %s: %s", e.Status, e.URL, e.Body)
}

// Client talks to the GitHub content API on behalf of an installation.
type Client struct {
	auth       *Authenticator
	httpClient *http.Client
	retryDelay time.Duration
}

func NewClient(auth *Authenticator) *Client {
	return &Client{
		auth:       auth,
		httpClient: &http.Client{Timeout: diffTimeout},
		retryDelay: retryDelay,
	}
}

// FetchDiff retrieves the unified diff for a pull request. apiPath is the
// pull request API URL as delivered in the webhook payload. Transport
// errors, timeouts, and 5xx responses are retried up to two times; 4xx
// responses fail immediately.
func (c *Client) FetchDiff(ctx context.Context, apiPath string, installationID int64) (string, error) {
	token, err := c.auth.InstallationToken(ctx, installationID)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= diffAttempts; attempt++ {
		if attempt > 1 {
			slog.Warn("retrying diff fetch",
				"url", apiPath,
				"attempt", attempt,
				"error", lastErr)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		diff, err := c.fetchDiffOnce(ctx, apiPath, token)
		if err == nil {
			return diff, nil
		}
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.Status < 500 {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("failed to fetch diff after %d attempts: %w", diffAttempts, lastErr)
}

func (c *Client) fetchDiffOnce(ctx context.Context, apiPath, token string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, diffTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, apiPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github.v3.diff")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("diff request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read diff response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Status: resp.StatusCode, URL: apiPath, Body: truncate(string(body), 512)}
	}
	return string(body), nil
}

// CreateReview posts a review on a pull request. prURL is the pull request
// API URL; the reviews collection lives directly beneath it.
func (c *Client) CreateReview(ctx context.Context, prURL string, installationID int64, review *ReviewRequest) error {
	token, err := c.auth.InstallationToken(ctx, installationID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("failed to marshal review: %w", err)
	}

	url := prURL + "/reviews"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("review request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return &UpstreamError{Status: resp.StatusCode, URL: url, Body: truncate(string(body), 512)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
