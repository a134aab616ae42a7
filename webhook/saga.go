// Package webhook orchestrates the pipeline from a raw GitHub delivery to a
// posted review: signature check, event parsing, trigger gating, diff
// retrieval, analysis, persistence, and notification.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hindsight-ai/hindsight/analysis"
	"github.com/hindsight-ai/hindsight/github"
	"github.com/hindsight-ai/hindsight/notify"
	"github.com/hindsight-ai/hindsight/settings"
	"github.com/hindsight-ai/hindsight/storage"
)

// Stage names the steps of the analysis pipeline, in execution order.
type Stage string

const (
	StageReceived    Stage = "RECEIVED"
	StageGated       Stage = "GATED"
	StageDiffFetched Stage = "DIFF_FETCHED"
	StageAnalyzed    Stage = "ANALYZED"
	StagePersisted   Stage = "PERSISTED"
	StageNotified    Stage = "NOTIFIED"
	StageCompleted   Stage = "COMPLETED"
)

// Outcome classifies how a pipeline run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// StageError wraps a failure with the stage it happened in. Completed stages
// are never rolled back; the error records how far the run got.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// SagaResult is the terminal state of one pipeline run.
type SagaResult struct {
	Outcome Outcome
	Stage   Stage
	Result  *analysis.Result
	Err     error
}

// DiffFetcher retrieves pull request diffs.
type DiffFetcher interface {
	FetchDiff(ctx context.Context, apiPath string, installationID int64) (string, error)
}

// Analyzer runs one diff analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// Notifier delivers a finished result.
type Notifier interface {
	Send(ctx context.Context, target notify.Target, result *analysis.Result, cfg settings.NotificationSettings) error
}

// Saga runs the analysis pipeline for one pull request event. Stages execute
// strictly in order and a failure stops the run where it happened.
type Saga struct {
	store    storage.Storage
	fetcher  DiffFetcher
	analyzer Analyzer
	notifier Notifier
	logger   *slog.Logger
}

func NewSaga(store storage.Storage, fetcher DiffFetcher, analyzer Analyzer, notifier Notifier, logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saga{
		store:    store,
		fetcher:  fetcher,
		analyzer: analyzer,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes the pipeline for a pull request event. A nil gate decision is
// a skip, never an error. Completed stages stay completed: a notification
// failure after persistence reports FAILED at NOTIFIED with the stored
// issues intact.
func (s *Saga) Run(ctx context.Context, event *github.PullRequestEvent) SagaResult {
	repo := event.Repository.FullName
	pr := event.PullRequest
	installationID := event.Installation.ID

	logger := s.logger.With(
		"repo", repo,
		"pr", pr.Number,
		"installation_id", installationID,
		"action", event.Action)

	// GATED: load settings and decide whether this event warrants analysis.
	setting, err := s.store.GetSettings(ctx, installationID)
	if err != nil {
		return s.fail(logger, StageGated, err)
	}
	decision := settings.Decide(setting, repo, event.Action)
	if decision == nil {
		logger.Info("event skipped by trigger settings")
		return SagaResult{Outcome: OutcomeSkipped, Stage: StageGated}
	}

	// DIFF_FETCHED
	diff, err := s.fetcher.FetchDiff(ctx, pr.URL, installationID)
	if err != nil {
		return s.fail(logger, StageDiffFetched, err)
	}

	// ANALYZED: past issues sharpen the analysis but their absence never
	// blocks it.
	history, err := s.store.ListIssues(ctx, installationID, repo)
	if err != nil {
		logger.Warn("failed to load issue history, analyzing without it", "error", err)
		history = nil
	}

	model := ""
	if setting != nil {
		model = setting.Global.AIModel
	}
	result, err := s.analyzer.Analyze(ctx, analysis.Request{
		Diff:    diff,
		Rules:   decision.Rules,
		History: history,
		Model:   model,
	})
	if err != nil {
		return s.fail(logger, StageAnalyzed, err)
	}
	result.Normalize()

	// PERSISTED: approvals with no findings leave nothing worth keeping.
	if len(result.Issues) > 0 && result.Recommendation != analysis.RecommendApprove {
		if err := s.store.SaveIssues(ctx, toHistoricalIssues(result, event)); err != nil {
			return s.fail(logger, StagePersisted, err)
		}
	}

	// NOTIFIED
	target := notify.Target{
		InstallationID: installationID,
		Repo:           repo,
		PRNumber:       pr.Number,
		CommitSHA:      headSHA(pr),
		PullRequestURL: pr.URL,
	}
	if err := s.notifier.Send(ctx, target, result, decision.Notifications); err != nil {
		return s.fail(logger, StageNotified, err)
	}

	logger.Info("analysis pipeline completed",
		"issues", len(result.Issues),
		"recommendation", result.Recommendation)
	return SagaResult{Outcome: OutcomeCompleted, Stage: StageCompleted, Result: result}
}

func (s *Saga) fail(logger *slog.Logger, stage Stage, err error) SagaResult {
	logger.Error("analysis pipeline failed", "stage", stage, "error", err)
	return SagaResult{
		Outcome: OutcomeFailed,
		Stage:   stage,
		Err:     &StageError{Stage: stage, Err: err},
	}
}

func headSHA(pr *github.PullRequest) string {
	if pr.Head != nil {
		return pr.Head.SHA
	}
	return ""
}

func toHistoricalIssues(result *analysis.Result, event *github.PullRequestEvent) []storage.HistoricalIssue {
	issues := make([]storage.HistoricalIssue, len(result.Issues))
	for i, issue := range result.Issues {
		issues[i] = storage.HistoricalIssue{
			InstallationID: event.Installation.ID,
			Repository:     event.Repository.FullName,
			PRNumber:       event.PullRequest.Number,
			Type:           issue.Type,
			Severity:       issue.Severity,
			File:           issue.File,
			Message:        issue.Message,
			TimeToFix:      issue.EstimatedFixTime,
			FoundAt:        time.Now(),
		}
	}
	return issues
}

// HTTPStatus maps a pipeline error to the status a synchronous webhook
// response should carry. Authentication failures are the caller's fault,
// upstream and model failures are gateway errors, storage failures are ours.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, github.ErrMissingSignature), errors.Is(err, github.ErrInvalidSignature):
		return 401
	case errors.Is(err, github.ErrUnsupportedEvent):
		return 400
	}

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case StageReceived, StageGated, StagePersisted:
			return 500
		default:
			return 502
		}
	}

	var tokenErr *github.TokenError
	var upstreamErr *github.UpstreamError
	var analysisErr *analysis.AnalysisError
	if errors.As(err, &tokenErr) || errors.As(err, &upstreamErr) || errors.As(err, &analysisErr) {
		return 502
	}

	return 400
}
