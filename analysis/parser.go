package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResult parses the model's JSON response into a normalized Result.
func ParseResult(response string) (*Result, error) {
	cleaned := cleanResponse(response)

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response as JSON: %w\nResponse: %s", err, cleaned)
	}

	if err := validateResult(&result); err != nil {
		return nil, err
	}

	result.Normalize()
	return &result, nil
}

// cleanResponse removes markdown code blocks and other formatting.
func cleanResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}

	response = strings.TrimSuffix(response, "```")

	return strings.TrimSpace(response)
}

// validateResult rejects responses with values the rest of the pipeline
// cannot act on.
func validateResult(r *Result) error {
	switch r.Recommendation {
	case RecommendApprove, RecommendRequestChanges, RecommendComment, "":
	default:
		return fmt.Errorf("invalid recommendation: %s", r.Recommendation)
	}

	for i, issue := range r.Issues {
		if issue.Message == "" {
			return fmt.Errorf("issue %d has empty message", i)
		}
		if issue.Line < 0 {
			return fmt.Errorf("issue %d has negative line number: %d", i, issue.Line)
		}
		switch issue.Severity {
		case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		case "":
			r.Issues[i].Severity = SeverityMedium
		default:
			return fmt.Errorf("issue %d has invalid severity: %s", i, issue.Severity)
		}
	}

	return nil
}
