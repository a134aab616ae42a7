package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hindsight-ai/hindsight/github"
	"github.com/hindsight-ai/hindsight/settings"
	"github.com/hindsight-ai/hindsight/storage"
)

// Dispatcher admits raw webhook deliveries and routes parsed events to their
// handlers. Signature verification always precedes payload parsing.
type Dispatcher struct {
	handler *github.WebhookHandler
	saga    *Saga
	store   storage.Storage
	logger  *slog.Logger
}

func NewDispatcher(handler *github.WebhookHandler, saga *Saga, store storage.Storage, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handler: handler,
		saga:    saga,
		store:   store,
		logger:  logger,
	}
}

// Admit verifies and parses one delivery. An invalid signature rejects the
// delivery before any payload byte is interpreted.
func (d *Dispatcher) Admit(ctx context.Context, envelope github.WebhookEnvelope) (*github.Event, error) {
	if err := d.handler.VerifySignature(ctx, envelope.Payload, envelope.Signature); err != nil {
		return nil, err
	}
	return d.handler.ParseEvent(envelope)
}

// Process routes a parsed event. Pull request events run the analysis saga;
// installation events maintain settings; push events are acknowledged and
// dropped.
func (d *Dispatcher) Process(ctx context.Context, event *github.Event) SagaResult {
	switch event.Kind {
	case github.EventPullRequest:
		return d.saga.Run(ctx, event.PullRequest)

	case github.EventInstallation:
		if err := d.processInstallation(ctx, event.Installation); err != nil {
			return SagaResult{
				Outcome: OutcomeFailed,
				Stage:   StageReceived,
				Err:     &StageError{Stage: StageReceived, Err: err},
			}
		}
		return SagaResult{Outcome: OutcomeCompleted, Stage: StageCompleted}

	case github.EventPush:
		d.logger.Info("push event received, not analyzed",
			"ref", event.Push.Ref,
			"repo", pushRepo(event.Push))
		return SagaResult{Outcome: OutcomeSkipped, Stage: StageReceived}

	default:
		return SagaResult{
			Outcome: OutcomeFailed,
			Stage:   StageReceived,
			Err:     &StageError{Stage: StageReceived, Err: fmt.Errorf("%w: %q", github.ErrUnsupportedEvent, event.Kind)},
		}
	}
}

// Dispatch runs a delivery end to end: admit, then process.
func (d *Dispatcher) Dispatch(ctx context.Context, envelope github.WebhookEnvelope) SagaResult {
	event, err := d.Admit(ctx, envelope)
	if err != nil {
		return SagaResult{Outcome: OutcomeFailed, Stage: StageReceived, Err: err}
	}
	return d.Process(ctx, event)
}

// processInstallation keeps settings in step with the app's install state:
// a new installation gets defaults for every granted repository, an
// uninstall removes its settings.
func (d *Dispatcher) processInstallation(ctx context.Context, event *github.InstallationEvent) error {
	installationID := event.Installation.ID

	switch event.Action {
	case "created":
		setting := &settings.UserSetting{
			InstallationID: installationID,
			Global:         settings.DefaultGlobalSettings(),
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if account := event.Installation.Account; account != nil {
			setting.UserID = account.ID
			setting.Account = settings.AccountInfo{
				ID:    account.ID,
				Login: account.Login,
				Type:  account.Type,
			}
		}
		for _, repo := range event.Repositories {
			setting.Repositories = append(setting.Repositories,
				settings.NewRepositoryConfig(repo.ID, repo.FullName))
		}

		if err := d.store.SaveSettings(ctx, setting); err != nil {
			return fmt.Errorf("failed to save settings for new installation %d: %w", installationID, err)
		}
		d.logger.Info("installation registered",
			"installation_id", installationID,
			"repositories", len(setting.Repositories))
		return nil

	case "deleted":
		if err := d.store.DeleteSettings(ctx, installationID); err != nil {
			return fmt.Errorf("failed to delete settings for installation %d: %w", installationID, err)
		}
		d.logger.Info("installation removed", "installation_id", installationID)
		return nil

	default:
		d.logger.Info("installation action ignored",
			"installation_id", installationID,
			"action", event.Action)
		return nil
	}
}

func pushRepo(event *github.PushEvent) string {
	if event.Repository != nil {
		return event.Repository.FullName
	}
	return ""
}
