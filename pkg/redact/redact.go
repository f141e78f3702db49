package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

var (
	bearerRe = regexp.MustCompile(`(?i)(bearer;?\s+)[^\s"',;]+`)
	headerRe = regexp.MustCompile(`(?i)(x-api-access-key["':=\s]+)[^\s"',;]+`)
)

func init() {
	enabled.Store(true)
}

// SetEnabled toggles credential redaction. Enabled by default.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Text masks access credentials embedded in a loggable string: the token of
// an "Authorization: Bearer; <key>" header and X-Api-Access-Key values.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := bearerRe.ReplaceAllString(in, "${1}[REDACTED]")
	out = headerRe.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}

// Secret masks a known secret wholesale, keeping the last four runes so logs
// stay correlatable without exposing the credential.
func Secret(v string) string {
	if !enabled.Load() {
		return v
	}
	r := []rune(v)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}
