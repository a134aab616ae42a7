package settings

import "strings"

// TriggerDecision is a positive gate result: the matched repository's rules
// and notification preferences for the event that triggered it.
type TriggerDecision struct {
	Repository    RepositoryConfig
	Rules         AnalysisRules
	Notifications NotificationSettings
}

// Decide checks whether a pull request action should trigger analysis for the
// named repository. Returns nil when the repository is unknown, inactive, or
// the action does not map to an enabled trigger. That is a skip, not an error.
// Repository names are matched case-insensitively.
func Decide(setting *UserSetting, repoName, action string) *TriggerDecision {
	if setting == nil {
		return nil
	}

	for _, repo := range setting.Repositories {
		if !strings.EqualFold(repo.RepoName, repoName) {
			continue
		}
		if !repo.Active {
			return nil
		}
		if !repo.Triggers.matchesAction(action) {
			return nil
		}
		return &TriggerDecision{
			Repository:    repo,
			Rules:         repo.Rules,
			Notifications: repo.Notifications,
		}
	}

	return nil
}

// matchesAction maps pull request actions to trigger flags. Actions without
// a mapping (closed, synchronize, ...) never match.
func (t TriggerSettings) matchesAction(action string) bool {
	switch strings.ToLower(action) {
	case "opened":
		return t.OnPROpen
	case "reopened":
		return t.OnPRReopen
	case "edited":
		return t.OnPRUpdate
	default:
		return false
	}
}
