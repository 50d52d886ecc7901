package notify

import (
	"fmt"
	"strings"

	"chatguard/internal/model"
)

// FormatWarning renders the channel-facing warning text. Brand mentions
// get a gentle informational notice; fraud alerts get the full warning
// with severity wording derived from the score.
func FormatWarning(alertType model.AlertType, keywords []string, score float64) string {
	found := "Suspicious activity"
	if len(keywords) > 0 {
		found = strings.Join(keywords, ", ")
	}
	if alertType == model.AlertBrandMentionInfo {
		brands := "Financial brand"
		if len(keywords) > 0 {
			brands = strings.Join(keywords, ", ")
		}
		return strings.Join([]string{
			"BRAND MENTION DETECTED",
			"",
			"Brand(s): " + brands,
			"Notice: a financial brand was mentioned in this conversation.",
			"",
			"Security reminder: always verify financial requests through official channels.",
			"Be cautious of unsolicited financial offers or requests.",
		}, "\n")
	}
	return strings.Join([]string{
		"FRAUD DETECTION ALERT",
		"",
		"Severity: " + SeverityLevel(score),
		fmt.Sprintf("Risk score: %.1f/1.0", score),
		"Alert type: " + titleCase(string(alertType)),
		"",
		"Detected patterns: " + found,
		"",
		"This message has been flagged for potential fraudulent content.",
		"Please exercise caution and verify any financial requests independently.",
	}, "\n")
}

// SeverityLevel buckets a score into the wording used in warnings.
func SeverityLevel(score float64) string {
	switch {
	case score >= 0.9:
		return "CRITICAL"
	case score >= 0.7:
		return "HIGH"
	case score >= 0.5:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func titleCase(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
