// Package main provides a local analyzer for trying out hindsight on a diff
// file without running the server.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-... go run cmd/local/main.go path/to/change.diff
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hindsight-ai/hindsight/analysis"
	"github.com/hindsight-ai/hindsight/settings"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <diff-file>\n", os.Args[0])
		os.Exit(1)
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		logger.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}

	model := os.Getenv("HINDSIGHT_MODEL")
	if model == "" {
		model = settings.DefaultGlobalSettings().AIModel
	}

	diff, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("failed to read diff file", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := analysis.ValidateAPIKey(ctx, apiKey, model); err != nil {
		cancel()
		logger.Error("API key validation failed", "error", err)
		os.Exit(1)
	}
	cancel()
	logger.Info("API key validated", "hint", analysis.ExtractKeyHint(apiKey))

	analyzer := analysis.NewAnalyzer(apiKey, model, logger)
	result, err := analyzer.Analyze(context.Background(), analysis.Request{
		Diff:  string(diff),
		Rules: settings.DefaultAnalysisRules(),
	})
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nSummary: %s\n", result.Summary)
	fmt.Printf("Recommendation: %s\n", result.Recommendation)
	fmt.Printf("Regret probability: %.0f%%\n", result.RegretProbability*100)
	if result.EstimatedFixTime != "" {
		fmt.Printf("Estimated fix time: %s\n", result.EstimatedFixTime)
	}
	fmt.Printf("Issues: %d\n", len(result.Issues))
	for _, issue := range result.Issues {
		fmt.Printf("\n[%s] %s", issue.Severity, issue.Type)
		if issue.File != "" {
			fmt.Printf(" (%s:%d)", issue.File, issue.Line)
		}
		fmt.Printf("\n  %s\n", issue.Message)
		if issue.Suggestion != "" {
			fmt.Printf("  Suggestion: %s\n", issue.Suggestion)
		}
	}
}
