package analysis

import (
	"fmt"
	"strings"

	"github.com/hindsight-ai/hindsight/settings"
	"github.com/hindsight-ai/hindsight/storage"
)

const systemPrompt = `You are an expert code reviewer who predicts technical regret: the probability that a change will need to be revisited, reverted, or painfully reworked later.

Focus on:
- Bugs and logic errors
- Shortcuts and hidden debt that will hurt later (leaky abstractions, missing error handling, silent failure modes)
- Security vulnerabilities
- Changes that are hard to undo once shipped (schema changes, public API shapes, wire formats)

Do NOT comment on:
- Minor style preferences (indentation, spacing, naming taste)
- Formatting issues (assume automated formatters handle this)
- Trivial issues that don't affect functionality

Be concise and specific. Every issue must point at a concrete location in the diff.`

const analysisPromptTemplate = `Analyze the following pull request diff and predict how likely the author is to regret merging it as-is.

%s

Respond in this exact JSON format:
{
  "summary": "Brief overall assessment (1-2 sentences)",
  "issues": [
    {
      "type": "potential_bug",
      "severity": "high",
      "file": "path/to/file.go",
      "line": 42,
      "message": "What is wrong and why it will cause regret.",
      "suggestion": "How to fix it.",
      "estimated_fix_time": "15m"
    }
  ],
  "regret_probability": 0.35,
  "recommendation": "COMMENT",
  "estimated_fix_time": "30m"
}

Rules for the response:
1. "recommendation" must be one of: "APPROVE", "REQUEST_CHANGES", "COMMENT"
   - Use "APPROVE" only if there are no issues at all
   - Use "REQUEST_CHANGES" for bugs, security issues, or serious problems
   - Use "COMMENT" for suggestions and minor improvements
2. "severity" must be one of: "critical", "high", "medium", "low"
3. "regret_probability" is a number between 0 and 1
4. "file" must exactly match a file path from the diff; "line" is the new-file line number
5. Respond with ONLY the JSON object, no other text

Here is the diff:

%s`

// BuildPrompt renders the user prompt for one analysis: the enabled rules,
// relevant history for the repository, and the diff itself.
func BuildPrompt(rules settings.AnalysisRules, history []storage.HistoricalIssue, diff string) string {
	var directives strings.Builder
	directives.WriteString("Enabled checks:\n")
	if rules.DetectTODOs {
		directives.WriteString("- Flag TODO/FIXME/HACK markers left in the change\n")
	}
	if rules.PredictRegret {
		directives.WriteString("- Predict the regret probability for the change as a whole\n")
	}
	if rules.CheckComplexity {
		directives.WriteString("- Flag functions or conditionals that grew too complex\n")
	}
	if rules.DetectDuplication {
		directives.WriteString("- Flag logic duplicated from elsewhere in the diff\n")
	}
	if rules.CheckTestCoverage {
		directives.WriteString("- Flag behavior changes with no accompanying test changes\n")
	}
	if len(rules.IgnorePatterns) > 0 {
		fmt.Fprintf(&directives, "\nIgnore files matching: %s\n", strings.Join(rules.IgnorePatterns, ", "))
	}

	if len(history) > 0 {
		directives.WriteString("\nPast issues found in this repository (weigh recurring patterns more heavily):\n")
		for _, issue := range history {
			fmt.Fprintf(&directives, "- PR #%d: %s (%s) in %s\n", issue.PRNumber, issue.Type, issue.Severity, issue.File)
		}
	}

	return fmt.Sprintf(analysisPromptTemplate, directives.String(), diff)
}
