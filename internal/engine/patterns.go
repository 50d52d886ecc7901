package engine

import (
	"fmt"
	"regexp"
	"strings"

	"chatguard/internal/model"
)

// Rule is one compiled detection rule. Rules are immutable after build;
// concurrent Scan calls read them without synchronization.
type Rule struct {
	ID       string
	Category model.PatternCategory
	re       *regexp.Regexp
}

// suspiciousRules are the fixed structural indicators: card-number-like
// digit groups, CVV-style codes, expiry tokens, account phrases, fraud
// vocabulary, phishing phrasing and urgency phrasing. Evaluated
// independently; one message can fire several.
var suspiciousRules = []struct {
	id   string
	expr string
}{
	{"credit_card_number", `\b(?:\d{4}[-\s]?){3}\d{4}\b`},
	{"cvv_code", `\bcvv\s*:?\s*\d{3,4}\b`},
	{"expiry_date", `\b(?:exp|expiry|expires?)\s*:?\s*\d{1,2}[/\-]\d{2,4}\b`},
	{"bank_account", `\b(?:account\s+number|routing\s+number|iban|swift)\s*:?\s*\d+\b`},
	{"fraud_terms", `\b(?:stolen|hacked|leaked|dump|fullz|cc|cvv2)\b`},
	{"phishing_terms", `\b(?:verify\s+account|update\s+payment|suspended\s+account)\b`},
	{"social_engineering", `\b(?:urgent|immediate|expire|suspend|verify|click\s+here)\b`},
}

// Matcher holds the compiled rule table. Built once from config; config
// reload builds a fresh Matcher and swaps it in atomically.
type Matcher struct {
	brands     []Rule
	suspicious []Rule
}

func NewMatcher(brandKeywords []string) (*Matcher, error) {
	m := &Matcher{}
	seen := make(map[string]struct{}, len(brandKeywords))
	for _, kw := range brandKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile brand keyword %q: %w", kw, err)
		}
		m.brands = append(m.brands, Rule{ID: kw, Category: model.CategoryBrandKeyword, re: re})
	}
	for _, r := range suspiciousRules {
		re, err := regexp.Compile(`(?i)` + r.expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", r.id, err)
		}
		m.suspicious = append(m.suspicious, Rule{ID: r.id, Category: model.CategorySuspiciousPattern, re: re})
	}
	return m, nil
}

// Scan reports which rules fire on text. Pure: no side effects, empty
// text yields an empty MatchSet. Each rule contributes at most once no
// matter how often it matches.
func (m *Matcher) Scan(text string) model.MatchSet {
	var ms model.MatchSet
	if text == "" {
		return ms
	}
	for _, r := range m.brands {
		if r.re.MatchString(text) {
			ms.Brands = append(ms.Brands, r.ID)
		}
	}
	for _, r := range m.suspicious {
		if r.re.MatchString(text) {
			ms.Suspicious = append(ms.Suspicious, r.ID)
		}
	}
	return ms
}
