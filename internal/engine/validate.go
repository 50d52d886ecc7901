package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrValidation marks input the engine refuses to analyze. The caller
// decides whether the failure pattern warrants a failed-attempt record.
var ErrValidation = errors.New("validation failure")

var injectionPatterns = []*regexp.Regexp{
	// SQL injection shapes
	regexp.MustCompile(`(?i)(union|select|insert|update|delete|drop|create|alter)\s+`),
	// script injection
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
}

// ValidateInput checks text and origin identity before analysis. Oversized
// or injection-shaped text and malformed identities are rejected; the
// engine then returns a no-op result rather than scoring them.
func ValidateInput(text, originID string, maxLen int) error {
	if maxLen > 0 && len(text) > maxLen {
		return fmt.Errorf("%w: text length %d exceeds %d", ErrValidation, len(text), maxLen)
	}
	if strings.TrimSpace(originID) == "" {
		return fmt.Errorf("%w: empty origin identity", ErrValidation)
	}
	if strings.ContainsRune(text, '\x00') {
		return fmt.Errorf("%w: text contains null byte", ErrValidation)
	}
	for _, re := range injectionPatterns {
		if re.MatchString(text) {
			return fmt.Errorf("%w: injection-shaped content", ErrValidation)
		}
	}
	return nil
}

// SanitizeText strips null bytes, truncates to maxLen and trims whitespace.
func SanitizeText(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\x00", "")
	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
	}
	return strings.TrimSpace(text)
}
