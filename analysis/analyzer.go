package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hindsight-ai/hindsight/settings"
	"github.com/hindsight-ai/hindsight/storage"
)

const (
	analysisTimeout = 2 * time.Minute
	maxTokens       = 4096
)

// AnalysisError indicates the model call or response handling failed.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Request is everything one analysis needs.
type Request struct {
	Diff    string
	Rules   settings.AnalysisRules
	History []storage.HistoricalIssue
	Model   string
}

// Analyzer runs diff analyses against Claude.
type Analyzer struct {
	apiKey string
	model  string
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer. model is the default used when a request
// does not name one.
func NewAnalyzer(apiKey, model string, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		apiKey: apiKey,
		model:  model,
		logger: logger,
	}
}

// Analyze sends the diff to Claude and parses the structured result.
// A failure anywhere in the exchange is an *AnalysisError; retries are the
// caller's decision.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Diff) == "" {
		return nil, &AnalysisError{Err: fmt.Errorf("empty diff")}
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	prompt := BuildPrompt(req.Rules, req.History, req.Diff)

	a.logger.Info("starting analysis",
		"model", model,
		"diff_size", len(req.Diff),
		"history_issues", len(req.History))

	timeoutCtx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	client := anthropic.NewClient(option.WithAPIKey(a.apiKey))
	message, err := client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(model)),
		MaxTokens: anthropic.F(int64(maxTokens)),
		System: anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(systemPrompt),
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	})
	if err != nil {
		return nil, &AnalysisError{Err: fmt.Errorf("claude request failed: %w", err)}
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &AnalysisError{Err: fmt.Errorf("claude returned no text content")}
	}

	result, err := ParseResult(text.String())
	if err != nil {
		return nil, &AnalysisError{Err: err}
	}

	a.logger.Info("analysis complete",
		"issues", len(result.Issues),
		"recommendation", result.Recommendation,
		"regret_probability", result.RegretProbability)

	return result, nil
}
