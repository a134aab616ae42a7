package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hindsight-ai/hindsight/analysis"
	"github.com/hindsight-ai/hindsight/github"
	"github.com/hindsight-ai/hindsight/settings"
)

type fakePoster struct {
	calls   int
	lastURL string
	lastID  int64
	last    *github.ReviewRequest
	err     error
}

func (f *fakePoster) CreateReview(ctx context.Context, prURL string, installationID int64, review *github.ReviewRequest) error {
	f.calls++
	f.lastURL = prURL
	f.lastID = installationID
	f.last = review
	return f.err
}

func sampleResult() *analysis.Result {
	return &analysis.Result{
		Summary:           "One risky change",
		Recommendation:    analysis.RecommendComment,
		RegretProbability: 0.42,
		Issues: []analysis.Issue{
			{
				Type:     "potential_bug",
				Severity: analysis.SeverityHigh,
				File:     "main.go",
				Line:     10,
				Message:  "error is discarded",
			},
			{
				Type:     "missing_tests",
				Severity: analysis.SeverityLow,
				Message:  "no tests accompany the change",
			},
		},
	}
}

func TestSendPostsGitHubReview(t *testing.T) {
	poster := &fakePoster{}
	notifier := New(poster, nil)

	target := Target{
		InstallationID: 99,
		Repo:           "acme/widgets",
		PRNumber:       42,
		CommitSHA:      "abc123",
		PullRequestURL: "https://api.github.com/repos/acme/widgets/pulls/42",
	}
	cfg := settings.NotificationSettings{GitHubComments: true}

	if err := notifier.Send(context.Background(), target, sampleResult(), cfg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if poster.calls != 1 {
		t.Fatalf("CreateReview calls = %d, want 1", poster.calls)
	}
	if poster.lastURL != target.PullRequestURL {
		t.Errorf("prURL = %q", poster.lastURL)
	}
	if poster.lastID != 99 {
		t.Errorf("installationID = %d, want 99", poster.lastID)
	}
	if poster.last.Event != "COMMENT" {
		t.Errorf("Event = %q, want COMMENT", poster.last.Event)
	}
	if poster.last.CommitID != "abc123" {
		t.Errorf("CommitID = %q, want abc123", poster.last.CommitID)
	}
}

func TestSendPropagatesPostFailure(t *testing.T) {
	wantErr := errors.New("upstream down")
	poster := &fakePoster{err: wantErr}
	notifier := New(poster, nil)

	err := notifier.Send(context.Background(), Target{}, sampleResult(), settings.NotificationSettings{GitHubComments: true})
	if !errors.Is(err, wantErr) {
		t.Errorf("Send() error = %v, want %v", err, wantErr)
	}
}

func TestSendUnimplementedChannelsAreNoOps(t *testing.T) {
	poster := &fakePoster{}
	notifier := New(poster, nil)

	// Email enabled alongside GitHub: the email channel is skipped without error.
	cfg := settings.NotificationSettings{GitHubComments: true, EmailDigestEnabled: true}
	if err := notifier.Send(context.Background(), Target{}, sampleResult(), cfg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if poster.calls != 1 {
		t.Errorf("CreateReview calls = %d, want 1", poster.calls)
	}
}

func TestBuildReviewRequest(t *testing.T) {
	req := BuildReviewRequest(sampleResult(), "abc123")

	if req.Event != "COMMENT" {
		t.Errorf("Event = %q, want COMMENT", req.Event)
	}
	// Only the located issue becomes an inline comment.
	if len(req.Comments) != 1 {
		t.Fatalf("len(Comments) = %d, want 1", len(req.Comments))
	}
	c := req.Comments[0]
	if c.Path != "main.go" || c.Line != 10 || c.Side != "RIGHT" {
		t.Errorf("comment = %+v", c)
	}
	if !strings.Contains(c.Body, "🟠") {
		t.Errorf("comment body missing severity marker: %q", c.Body)
	}

	for _, want := range []string{
		"## 🤖 AI Code Review",
		"One risky change",
		"**Regret Probability:** 42%",
		"**Issues Found:** 2",
		"missing_tests",
	} {
		if !strings.Contains(req.Body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestBuildReviewRequestApprove(t *testing.T) {
	result := &analysis.Result{
		Summary:        "No issues found",
		Recommendation: analysis.RecommendApprove,
	}
	req := BuildReviewRequest(result, "abc123")
	if req.Event != "APPROVE" {
		t.Errorf("Event = %q, want APPROVE", req.Event)
	}
	if len(req.Comments) != 0 {
		t.Errorf("len(Comments) = %d, want 0", len(req.Comments))
	}
}
