// Package settings defines per-installation configuration for the reviewer
// and the trigger gate that decides whether an event warrants analysis.
package settings

import "time"

// UserSetting holds the full configuration for one GitHub App installation.
type UserSetting struct {
	UserID         int64              `json:"user_id"`
	InstallationID int64              `json:"installation_id"`
	Account        AccountInfo        `json:"account"`
	Repositories   []RepositoryConfig `json:"repositories"`
	Global         GlobalSettings     `json:"global_settings"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// AccountInfo caches the GitHub account that installed the app.
type AccountInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Type  string `json:"type"` // User or Organization
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// GlobalSettings apply to every repository of an installation.
type GlobalSettings struct {
	AIModel  string `json:"ai_model"`
	Language string `json:"language"`
	Timezone string `json:"timezone"`
}

// RepositoryConfig configures the reviewer for a single repository.
type RepositoryConfig struct {
	RepoID        int64                `json:"repo_id"`
	RepoName      string               `json:"repo_name"` // full name: "owner/repo"
	Active        bool                 `json:"is_active"`
	Rules         AnalysisRules        `json:"rules"`
	Triggers      TriggerSettings      `json:"triggers"`
	Notifications NotificationSettings `json:"notifications"`
	Metadata      RepositoryMetadata   `json:"metadata"`
}

// AnalysisRules are the feature toggles passed to the analyzer.
type AnalysisRules struct {
	DetectTODOs       bool     `json:"detect_todos"`
	PredictRegret     bool     `json:"predict_regret"`
	CheckComplexity   bool     `json:"check_complexity"`
	DetectDuplication bool     `json:"detect_duplication"`
	CheckTestCoverage bool     `json:"check_test_coverage"`
	IgnorePatterns    []string `json:"ignore_patterns,omitempty"`
	Languages         []string `json:"languages,omitempty"` // nil = all languages
}

// TriggerSettings decide which GitHub events start an analysis.
type TriggerSettings struct {
	OnPROpen   bool `json:"on_pr_open"`
	OnPRUpdate bool `json:"on_pr_update"`
	OnPRReopen bool `json:"on_pr_reopen"`
	OnPush     bool `json:"on_push"`
}

// NotificationSettings decide where analysis results are delivered.
type NotificationSettings struct {
	GitHubComments        bool     `json:"github_comments"`
	EmailDigestEnabled    bool     `json:"email_digest_enabled"`
	EmailDigestFrequency  string   `json:"email_digest_frequency,omitempty"`
	EmailDigestRecipients []string `json:"email_digest_recipients,omitempty"`
}

// RepositoryMetadata caches repository facts fetched from GitHub.
type RepositoryMetadata struct {
	DefaultBranch      string     `json:"default_branch,omitempty"`
	PrimaryLanguage    string     `json:"primary_language,omitempty"`
	Private            bool       `json:"is_private,omitempty"`
	LastAnalyzedAt     *time.Time `json:"last_analyzed_at,omitempty"`
	TotalAnalysesCount int        `json:"total_analyses_count"`
}

// NotificationClient identifies a delivery channel for analysis results.
type NotificationClient string

const (
	ClientGitHub NotificationClient = "github"
	ClientEmail  NotificationClient = "email"
	ClientSlack  NotificationClient = "slack"
)

// DefaultAnalysisRules returns the rules applied to newly configured repositories.
func DefaultAnalysisRules() AnalysisRules {
	return AnalysisRules{
		DetectTODOs:     true,
		PredictRegret:   true,
		CheckComplexity: true,
		IgnorePatterns: []string{
			"*.test.js",
			"*.spec.ts",
			"*.generated.*",
			"node_modules/**",
			"build/**",
			"dist/**",
		},
	}
}

// DefaultTriggerSettings returns the triggers enabled for new repositories.
func DefaultTriggerSettings() TriggerSettings {
	return TriggerSettings{
		OnPROpen:   true,
		OnPRUpdate: true,
	}
}

// DefaultNotificationSettings returns the delivery channels for new repositories.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		GitHubComments:       true,
		EmailDigestFrequency: "weekly",
	}
}

// DefaultGlobalSettings returns the installation-wide defaults.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		AIModel:  "claude-sonnet-4-20250514",
		Language: "EN",
		Timezone: "Europe/London",
	}
}

// NewRepositoryConfig builds an active repository entry with default rules,
// triggers, and notifications.
func NewRepositoryConfig(repoID int64, repoName string) RepositoryConfig {
	return RepositoryConfig{
		RepoID:        repoID,
		RepoName:      repoName,
		Active:        true,
		Rules:         DefaultAnalysisRules(),
		Triggers:      DefaultTriggerSettings(),
		Notifications: DefaultNotificationSettings(),
	}
}

// Clients returns the notification channels enabled by the settings.
// Defaults to GitHub comments when nothing is enabled explicitly.
func (n NotificationSettings) Clients() []NotificationClient {
	var clients []NotificationClient
	if n.GitHubComments {
		clients = append(clients, ClientGitHub)
	}
	if n.EmailDigestEnabled {
		clients = append(clients, ClientEmail)
	}
	if len(clients) == 0 {
		clients = append(clients, ClientGitHub)
	}
	return clients
}
