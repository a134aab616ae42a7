// Package notify delivers analysis results to the channels an installation
// has enabled.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hindsight-ai/hindsight/analysis"
	"github.com/hindsight-ai/hindsight/github"
	"github.com/hindsight-ai/hindsight/settings"
)

// Target identifies the pull request a result belongs to.
type Target struct {
	InstallationID int64
	Repo           string // owner/repo
	PRNumber       int
	CommitSHA      string
	PullRequestURL string // API URL of the pull request
}

// ReviewPoster posts reviews to GitHub on behalf of an installation.
type ReviewPoster interface {
	CreateReview(ctx context.Context, prURL string, installationID int64, review *github.ReviewRequest) error
}

// Notifier fans an analysis result out to every enabled channel.
type Notifier struct {
	poster ReviewPoster
	logger *slog.Logger
}

func New(poster ReviewPoster, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		poster: poster,
		logger: logger,
	}
}

// Send delivers the result to each channel enabled in the notification
// settings. Channels run concurrently; the first failure wins and is
// returned after all channels finish.
func (n *Notifier) Send(ctx context.Context, target Target, result *analysis.Result, cfg settings.NotificationSettings) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, client := range cfg.Clients() {
		client := client
		g.Go(func() error {
			return n.deliver(ctx, client, target, result)
		})
	}

	return g.Wait()
}

func (n *Notifier) deliver(ctx context.Context, client settings.NotificationClient, target Target, result *analysis.Result) error {
	switch client {
	case settings.ClientGitHub:
		review := BuildReviewRequest(result, target.CommitSHA)
		if err := n.poster.CreateReview(ctx, target.PullRequestURL, target.InstallationID, review); err != nil {
			return fmt.Errorf("failed to post review for %s#%d: %w", target.Repo, target.PRNumber, err)
		}
		n.logger.Info("posted review",
			"repo", target.Repo,
			"pr", target.PRNumber,
			"event", review.Event,
			"comments", len(review.Comments))
		return nil

	case settings.ClientEmail, settings.ClientSlack:
		// Accepted in settings but not yet wired to a provider.
		n.logger.Warn("notification channel not implemented, skipping",
			"channel", client,
			"repo", target.Repo,
			"pr", target.PRNumber)
		return nil

	default:
		n.logger.Warn("unknown notification channel, skipping", "channel", client)
		return nil
	}
}
