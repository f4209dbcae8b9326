package security

import "regexp"

// Coarse injection and XSS signatures. Matching input is refused outright;
// this sits in front of parameterized queries and output encoding, not in
// place of them.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)expression\(`),
	regexp.MustCompile(`(?i)import\s`),
	regexp.MustCompile(`(?i)<iframe`),
	regexp.MustCompile(`(?i)document\.`),
	regexp.MustCompile(`(?i)window\.`),
	regexp.MustCompile(`(?i)SELECT.*FROM`),
	regexp.MustCompile(`(?i)INSERT.*INTO`),
	regexp.MustCompile(`(?i)DELETE.*FROM`),
	regexp.MustCompile(`(?i)DROP.*TABLE`),
	regexp.MustCompile(`(?i)UNION.*SELECT`),
	regexp.MustCompile(`--`),
	regexp.MustCompile(`;.*--`),
	regexp.MustCompile(`/\*`),
}

func Suspicious(input string) bool {
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

func AnySuspicious(values ...string) bool {
	for _, v := range values {
		if Suspicious(v) {
			return true
		}
	}
	return false
}
