// Package redact removes credentials and internal details from error strings
// before they are logged or exposed by the HTTP layer.
package redact

import "regexp"

// Placeholders substituted for redacted content.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Rules run in order; earlier rules consume text later rules would also match.
var rules = []rule{
	{
		re:   regexp.MustCompile(`(?i)\b(postgres(?:ql)?|pulsar(?:\+ssl)?)://[^@\s/]+@`),
		repl: "${1}://" + RedactedCredentialPlaceholder + "@",
	},
	{
		re:   regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.~+/=]+`),
		repl: "Bearer " + RedactedTokenPlaceholder,
	},
	{
		re:   regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		repl: RedactedJWTPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?i)\b(password|passwd|secret|token|internal_token|jwt_secret)(["']?\s*[:=]\s*["']?)[^"'\s&,]+`),
		repl: "${1}${2}" + RedactionPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?i)\b(?:SELECT|INSERT|UPDATE|DELETE)\s[^;]*?\b(?:FROM|INTO|SET)\b[^;]*`),
		repl: RedactedSQLPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(/[\w.-]+){2,}`),
		repl: RedactedPathPlaceholder,
	},
}

// String returns input with every sensitive fragment replaced.
func String(input string) string {
	if input == "" {
		return input
	}
	for _, r := range rules {
		input = r.re.ReplaceAllString(input, r.repl)
	}
	return input
}

// Error redacts err's message. A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
