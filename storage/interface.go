// Package storage defines the storage interface for hindsight.
package storage

import (
	"context"

	"github.com/hindsight-ai/hindsight/settings"
)

// Storage defines the interface for hindsight storage backends.
// Implementations must be safe for concurrent use by multiple goroutines.
// Lookups that find nothing return (nil, nil), not an error.
type Storage interface {
	// Settings operations
	SaveSettings(ctx context.Context, setting *settings.UserSetting) error
	GetSettings(ctx context.Context, installationID int64) (*settings.UserSetting, error)
	DeleteSettings(ctx context.Context, installationID int64) error

	// Historical issue operations
	SaveIssues(ctx context.Context, issues []HistoricalIssue) error
	ListIssues(ctx context.Context, installationID int64, repository string) ([]HistoricalIssue, error)
}
