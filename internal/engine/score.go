package engine

import (
	"strings"

	"chatguard/internal/model"
)

const (
	brandWeight      = 0.2
	suspiciousWeight = 0.3
	phishingBonus    = 0.1
	maxBrandCount    = 2
	maxPatternCount  = 3
)

// Score converts a match set into a risk score in [0,1]. Match counts are
// capped so a single spammy message repeating one brand or keyword cannot
// push the score toward 1.0 on its own; "urgent" and "verify" each add a
// flat bonus for the classic phishing tell. The total is clamped, not
// merely summed. Pure function.
func Score(ms model.MatchSet, text string) float64 {
	score := float64(min(len(ms.Brands), maxBrandCount)) * brandWeight
	score += float64(min(len(ms.Suspicious), maxPatternCount)) * suspiciousWeight

	lower := strings.ToLower(text)
	if strings.Contains(lower, "urgent") {
		score += phishingBonus
	}
	if strings.Contains(lower, "verify") {
		score += phishingBonus
	}

	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
