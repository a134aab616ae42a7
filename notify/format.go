package notify

import (
	"fmt"
	"strings"

	"github.com/hindsight-ai/hindsight/analysis"
	"github.com/hindsight-ai/hindsight/github"
)

// severityEmoji marks each finding with its urgency at a glance.
func severityEmoji(severity string) string {
	switch severity {
	case analysis.SeverityCritical:
		return "🔴"
	case analysis.SeverityHigh:
		return "🟠"
	case analysis.SeverityMedium:
		return "🟡"
	default:
		return "🔵"
	}
}

// BuildReviewRequest renders an analysis result as a GitHub review: a
// general body plus one inline comment per issue that names a file and line.
// Issues without a usable location are folded into the general body instead.
func BuildReviewRequest(result *analysis.Result, commitSHA string) *github.ReviewRequest {
	var comments []github.ReviewComment
	var unplaced []analysis.Issue

	for _, issue := range result.Issues {
		if issue.File == "" || issue.Line <= 0 {
			unplaced = append(unplaced, issue)
			continue
		}
		comments = append(comments, github.ReviewComment{
			Path: issue.File,
			Line: issue.Line,
			Side: "RIGHT",
			Body: formatIssueComment(issue),
		})
	}

	return &github.ReviewRequest{
		CommitID: commitSHA,
		Body:     buildReviewBody(result, unplaced),
		Event:    result.Recommendation,
		Comments: comments,
	}
}

func formatIssueComment(issue analysis.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s** (%s)\n\n%s", severityEmoji(issue.Severity), issue.Type, issue.Severity, issue.Message)
	if issue.Suggestion != "" {
		fmt.Fprintf(&b, "\n\n**Suggestion:** %s", issue.Suggestion)
	}
	if issue.EstimatedFixTime != "" {
		fmt.Fprintf(&b, "\n\n_Estimated fix time: %s_", issue.EstimatedFixTime)
	}
	return b.String()
}

func buildReviewBody(result *analysis.Result, unplaced []analysis.Issue) string {
	var b strings.Builder
	b.WriteString("## 🤖 AI Code Review\n\n")
	fmt.Fprintf(&b, "**Summary:** %s\n\n", result.Summary)
	fmt.Fprintf(&b, "**Recommendation:** %s\n\n", result.Recommendation)
	fmt.Fprintf(&b, "**Regret Probability:** %.0f%%\n\n", result.RegretProbability*100)
	fmt.Fprintf(&b, "**Issues Found:** %d\n", len(result.Issues))
	if result.EstimatedFixTime != "" {
		fmt.Fprintf(&b, "\n**Estimated Fix Time:** %s\n", result.EstimatedFixTime)
	}

	if len(unplaced) > 0 {
		b.WriteString("\n### Other findings\n")
		for _, issue := range unplaced {
			fmt.Fprintf(&b, "\n- %s **%s**: %s", severityEmoji(issue.Severity), issue.Type, issue.Message)
		}
		b.WriteString("\n")
	}

	return b.String()
}
