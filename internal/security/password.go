package security

import (
	"regexp"
	"unicode/utf8"
)

type Requirement string

const (
	RequireMinLength   Requirement = "min_length"
	RequireMixedCase   Requirement = "mixed_case"
	RequireDigit       Requirement = "digit"
	RequireSpecialChar Requirement = "special_char"
	RequireUncommon    Requirement = "uncommon"
)

const MinPasswordLength = 8

var requirementMessages = map[Requirement]string{
	RequireMinLength:   "Password must be at least 8 characters long",
	RequireMixedCase:   "Use both lowercase and uppercase letters",
	RequireDigit:       "Add at least one digit",
	RequireSpecialChar: "Add special characters (!@#$%^&*)",
	RequireUncommon:    "Avoid obvious passwords",
}

var (
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	digitPattern   = regexp.MustCompile(`\d`)
	specialPattern = regexp.MustCompile(`[^a-zA-Z0-9]`)

	commonPasswordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^123456`),
		regexp.MustCompile(`(?i)password`),
		regexp.MustCompile(`(?i)qwerty`),
		regexp.MustCompile(`111111`),
		regexp.MustCompile(`(?i)abc123`),
	}
)

type PasswordStrength struct {
	Score    int           `json:"score"`
	Missing  []Requirement `json:"missing,omitempty"`
	Feedback []string      `json:"feedback,omitempty"`
	Strong   bool          `json:"is_strong"`
}

// CheckPassword scores password from 0 to 5 and names every requirement it
// misses. A password is strong only when it meets all four basic rules and
// matches no common pattern.
func CheckPassword(password string) PasswordStrength {
	var s PasswordStrength
	miss := func(r Requirement) {
		s.Missing = append(s.Missing, r)
		s.Feedback = append(s.Feedback, requirementMessages[r])
	}

	length := utf8.RuneCountInString(password)
	hasMinLength := length >= MinPasswordLength
	hasMixedCase := lowerPattern.MatchString(password) && upperPattern.MatchString(password)
	hasDigit := digitPattern.MatchString(password)
	hasSpecial := specialPattern.MatchString(password)

	if !hasMinLength {
		miss(RequireMinLength)
	}
	if !hasMixedCase {
		miss(RequireMixedCase)
	}
	if !hasDigit {
		miss(RequireDigit)
	}
	if !hasSpecial {
		miss(RequireSpecialChar)
	}

	for _, ok := range []bool{hasMinLength, length >= 12, hasMixedCase, hasDigit, hasSpecial} {
		if ok {
			s.Score++
		}
	}

	common := false
	for _, pattern := range commonPasswordPatterns {
		if pattern.MatchString(password) {
			s.Score = max(0, s.Score-2)
			miss(RequireUncommon)
			common = true
			break
		}
	}

	s.Score = min(5, max(0, s.Score))
	s.Strong = hasMinLength && hasMixedCase && hasDigit && hasSpecial && !common
	return s
}
