// Package postgres provides a PostgreSQL implementation of the storage interface.
// This is intended for self-hosted deployments.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hindsight-ai/hindsight/settings"
	"github.com/hindsight-ai/hindsight/storage"
)

// PostgreSQL provides storage operations using PostgreSQL.
type PostgreSQL struct {
	db *sql.DB
}

// New creates a new PostgreSQL storage instance.
func New(db *sql.DB) *PostgreSQL {
	return &PostgreSQL{db: db}
}

// NewFromDSN creates a new PostgreSQL storage instance from a connection string.
func NewFromDSN(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// Close closes the database connection.
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

// Migrate creates the required database tables.
func (p *PostgreSQL) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS user_settings (
			installation_id BIGINT PRIMARY KEY,
			user_id BIGINT,
			account JSONB,
			repositories JSONB,
			global_settings JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS historical_issues (
			id SERIAL PRIMARY KEY,
			installation_id BIGINT NOT NULL,
			repository TEXT NOT NULL,
			pr_number INTEGER NOT NULL,
			type TEXT NOT NULL,
			severity TEXT,
			file TEXT,
			message TEXT,
			resolution TEXT,
			time_to_fix TEXT,
			found_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_issues_repo ON historical_issues(installation_id, repository);
	`

	_, err := p.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveSettings stores or replaces the settings for an installation.
func (p *PostgreSQL) SaveSettings(ctx context.Context, setting *settings.UserSetting) error {
	query := `
		INSERT INTO user_settings (installation_id, user_id, account, repositories, global_settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (installation_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			account = EXCLUDED.account,
			repositories = EXCLUDED.repositories,
			global_settings = EXCLUDED.global_settings,
			updated_at = NOW()
	`

	_, err := p.db.ExecContext(ctx, query,
		setting.InstallationID,
		setting.UserID,
		accountToJSON(setting.Account),
		repositoriesToJSON(setting.Repositories),
		globalToJSON(setting.Global),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

// GetSettings retrieves the settings for an installation.
// Returns (nil, nil) if no settings exist.
func (p *PostgreSQL) GetSettings(ctx context.Context, installationID int64) (*settings.UserSetting, error) {
	query := `
		SELECT installation_id, user_id, account, repositories, global_settings, created_at, updated_at
		FROM user_settings
		WHERE installation_id = $1
	`

	var setting settings.UserSetting
	var account, repositories, global string
	err := p.db.QueryRowContext(ctx, query, installationID).Scan(
		&setting.InstallationID,
		&setting.UserID,
		&account,
		&repositories,
		&global,
		&setting.CreatedAt,
		&setting.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	setting.Account = accountFromJSON(account)
	setting.Repositories = repositoriesFromJSON(repositories)
	setting.Global = globalFromJSON(global)

	return &setting, nil
}

// DeleteSettings removes the settings for an installation.
func (p *PostgreSQL) DeleteSettings(ctx context.Context, installationID int64) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM user_settings WHERE installation_id = $1`, installationID)
	if err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}

// SaveIssues appends issues found by one analysis.
func (p *PostgreSQL) SaveIssues(ctx context.Context, issues []storage.HistoricalIssue) error {
	if len(issues) == 0 {
		return nil
	}

	query := `
		INSERT INTO historical_issues (installation_id, repository, pr_number, type, severity, file, message, resolution, time_to_fix, found_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, issue := range issues {
		foundAt := issue.FoundAt
		if foundAt.IsZero() {
			foundAt = time.Now()
		}
		_, err := p.db.ExecContext(ctx, query,
			issue.InstallationID,
			issue.Repository,
			issue.PRNumber,
			issue.Type,
			issue.Severity,
			issue.File,
			issue.Message,
			issue.Resolution,
			issue.TimeToFix,
			foundAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save issue: %w", err)
		}
	}

	return nil
}

// ListIssues returns the recorded issues for one repository of an
// installation, most recent first.
func (p *PostgreSQL) ListIssues(ctx context.Context, installationID int64, repository string) ([]storage.HistoricalIssue, error) {
	query := `
		SELECT id, installation_id, repository, pr_number, type, severity, file, message, resolution, time_to_fix, found_at
		FROM historical_issues
		WHERE installation_id = $1 AND repository = $2
		ORDER BY found_at DESC
	`

	rows, err := p.db.QueryContext(ctx, query, installationID, repository)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []storage.HistoricalIssue
	for rows.Next() {
		var issue storage.HistoricalIssue
		err := rows.Scan(
			&issue.ID,
			&issue.InstallationID,
			&issue.Repository,
			&issue.PRNumber,
			&issue.Type,
			&issue.Severity,
			&issue.File,
			&issue.Message,
			&issue.Resolution,
			&issue.TimeToFix,
			&issue.FoundAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", err)
	}

	return issues, nil
}

// Verify interface compliance
var _ storage.Storage = (*PostgreSQL)(nil)
