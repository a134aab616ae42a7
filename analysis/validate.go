package analysis

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ValidateAPIKey checks that the Anthropic API key is usable with the model
// analyses will run on, so a bad key or an unavailable model fails at
// startup instead of on the first webhook. The probe asks for a single
// token to keep the cost negligible.
func ValidateAPIKey(ctx context.Context, apiKey, model string) error {
	if apiKey == "" {
		return fmt.Errorf("API key is empty")
	}
	if model == "" {
		return fmt.Errorf("model is empty")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	_, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(model)),
		MaxTokens: anthropic.F(int64(1)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("hi")),
		}),
	})
	if err != nil {
		return fmt.Errorf("API key validation failed for model %s: %w", model, err)
	}

	return nil
}

// ExtractKeyHint returns the last 4 characters of an API key for display.
func ExtractKeyHint(apiKey string) string {
	if len(apiKey) < 4 {
		return "****"
	}
	return apiKey[len(apiKey)-4:]
}
