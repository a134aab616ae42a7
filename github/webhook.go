package github

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrInvalidSignature indicates the webhook signature verification failed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMissingSignature indicates the webhook signature header is missing.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrUnsupportedEvent indicates the webhook event type is not handled.
	ErrUnsupportedEvent = errors.New("unsupported event type")
)

// cryptoGate bounds concurrent CPU-bound crypto (HMAC verification and RSA
// signing) so a burst of deliveries cannot starve request handling.
var cryptoGate = semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))

func withCryptoGate(ctx context.Context, fn func()) error {
	if err := cryptoGate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer cryptoGate.Release(1)
	fn()
	return nil
}

// WebhookHandler verifies and parses GitHub webhook deliveries.
type WebhookHandler struct {
	secret []byte
}

// NewWebhookHandler creates a webhook handler with the given shared secret.
func NewWebhookHandler(secret string) *WebhookHandler {
	return &WebhookHandler{
		secret: []byte(secret),
	}
}

// VerifySignature verifies the delivery signature against the raw payload.
// The header format is "sha256=<hex-encoded HMAC-SHA256>". Comparison is
// constant-time. A failure here is a security gate, never retried.
func (h *WebhookHandler) VerifySignature(ctx context.Context, payload []byte, signatureHeader string) error {
	if signatureHeader == "" {
		return ErrMissingSignature
	}

	parts := strings.SplitN(signatureHeader, "=", 2)
	if len(parts) != 2 || parts[0] != "sha256" {
		return ErrInvalidSignature
	}

	signature, err := hex.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: malformed hex", ErrInvalidSignature)
	}

	var ok bool
	if err := withCryptoGate(ctx, func() {
		mac := hmac.New(sha256.New, h.secret)
		mac.Write(payload)
		ok = hmac.Equal(signature, mac.Sum(nil))
	}); err != nil {
		return err
	}

	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// ParseEvent parses a verified delivery into its typed payload variant.
// The event type header selects the variant; unknown types fail with
// ErrUnsupportedEvent and the payload is not inspected.
func (h *WebhookHandler) ParseEvent(envelope WebhookEnvelope) (*Event, error) {
	switch envelope.EventType {
	case "pull_request":
		var event PullRequestEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return nil, fmt.Errorf("failed to parse pull_request payload: %w", err)
		}
		if event.PullRequest == nil {
			return nil, errors.New("payload is missing pull_request")
		}
		if event.Repository == nil {
			return nil, errors.New("payload is missing repository")
		}
		if event.Installation == nil {
			return nil, errors.New("payload is missing installation")
		}
		return &Event{Kind: EventPullRequest, PullRequest: &event}, nil

	case "installation":
		var event InstallationEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return nil, fmt.Errorf("failed to parse installation payload: %w", err)
		}
		if event.Installation == nil {
			return nil, errors.New("payload is missing installation")
		}
		return &Event{Kind: EventInstallation, Installation: &event}, nil

	case "push":
		var event PushEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return nil, fmt.Errorf("failed to parse push payload: %w", err)
		}
		return &Event{Kind: EventPush, Push: &event}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, envelope.EventType)
	}
}
