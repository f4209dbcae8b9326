// Package security holds input hygiene, password policy, the security audit
// log, CSRF tokens and the legacy password hasher.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const DefaultMaxInputLength = 1000

var (
	angleBrackets = regexp.MustCompile(`[<>]`)
	jsProtocol    = regexp.MustCompile(`(?i)javascript:`)
	eventHandler  = regexp.MustCompile(`(?i)on\w+\s*=`)

	emailPattern = regexp.MustCompile(
		"^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$",
	)
)

// Sanitize trims input, strips markup and script vectors, and truncates it
// to maxLength runes. A non-positive maxLength uses DefaultMaxInputLength.
func Sanitize(input string, maxLength int) string {
	if input == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}

	out := strings.TrimSpace(input)
	out = angleBrackets.ReplaceAllString(out, "")
	out = jsProtocol.ReplaceAllString(out, "")
	out = eventHandler.ReplaceAllString(out, "")

	if utf8.RuneCountInString(out) > maxLength {
		out = string([]rune(out)[:maxLength])
	}
	return out
}

// SanitizeEmail applies Sanitize and lowercases the result.
func SanitizeEmail(email string) string {
	return strings.ToLower(Sanitize(email, 254))
}

func ValidEmail(email string) bool {
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return false
	}
	local, _, _ := strings.Cut(email, "@")
	return len(local) <= 64
}
