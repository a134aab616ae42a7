package storage

import "time"

// HistoricalIssue is a single issue found by a past analysis, kept so later
// analyses of the same repository can weigh recurring problem patterns.
type HistoricalIssue struct {
	ID             int64     `json:"id,omitempty"`
	InstallationID int64     `json:"installation_id"`
	Repository     string    `json:"repository"` // owner/repo
	PRNumber       int       `json:"pr_number"`
	Type           string    `json:"type"`
	Severity       string    `json:"severity"`
	File           string    `json:"file"`
	Message        string    `json:"message"`
	Resolution     string    `json:"resolution,omitempty"`
	TimeToFix      string    `json:"time_to_fix,omitempty"`
	FoundAt        time.Time `json:"found_at"`
}
