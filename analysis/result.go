// Package analysis turns pull request diffs into structured review results
// using Claude.
package analysis

import "time"

// Recommendation is the overall verdict of an analysis. Values match the
// GitHub review event names they are posted as.
const (
	RecommendApprove        = "APPROVE"
	RecommendRequestChanges = "REQUEST_CHANGES"
	RecommendComment        = "COMMENT"
)

// Issue severities, ordered from most to least urgent.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Result is one completed analysis of a pull request diff.
type Result struct {
	Summary           string    `json:"summary"`
	Issues            []Issue   `json:"issues"`
	RegretProbability float64   `json:"regret_probability"` // 0..1
	Recommendation    string    `json:"recommendation"`
	EstimatedFixTime  string    `json:"estimated_fix_time,omitempty"`
	AnalyzedAt        time.Time `json:"analyzed_at"`
}

// Issue is a single finding within a diff.
type Issue struct {
	Type             string `json:"type"`
	Severity         string `json:"severity"`
	File             string `json:"file"`
	Line             int    `json:"line"`
	Message          string `json:"message"`
	Suggestion       string `json:"suggestion,omitempty"`
	CodeSnippet      string `json:"code_snippet,omitempty"`
	EstimatedFixTime string `json:"estimated_fix_time,omitempty"`
}

// Normalize fills in the fields the model is allowed to omit. A missing
// recommendation becomes APPROVE when the analysis found nothing and COMMENT
// otherwise; a missing summary gets a stock phrase; the regret probability
// is clamped to [0, 1].
func (r *Result) Normalize() {
	if r.Recommendation == "" {
		if len(r.Issues) == 0 {
			r.Recommendation = RecommendApprove
		} else {
			r.Recommendation = RecommendComment
		}
	}
	if r.Summary == "" {
		if len(r.Issues) == 0 {
			r.Summary = "No issues found"
		} else {
			r.Summary = "Analysis completed"
		}
	}
	if r.RegretProbability < 0 {
		r.RegretProbability = 0
	}
	if r.RegretProbability > 1 {
		r.RegretProbability = 1
	}
	if r.AnalyzedAt.IsZero() {
		r.AnalyzedAt = time.Now()
	}
}

// HasBlockingIssues reports whether any finding is critical or high severity.
func (r *Result) HasBlockingIssues() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical || issue.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
