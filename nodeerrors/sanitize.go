package nodeerrors

import "regexp"

// sensitivePatterns redact labelled secret-bearing fields out of an error's
// technical detail text before it is ever shown to a user (spec §7:
// "technical_details ... is sanitized of seeds, private keys, and
// passwords"). Each pattern matches a label followed by its value,
// optionally quoted, up to the next whitespace/quote/comma, mirroring the
// labelled "--sk-hex <value>" style flags the node's key-management tooling
// never logs in full.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(seed)\s*[:=]\s*["']?[^\s,"']+["']?`),
	regexp.MustCompile(`(?i)(sk-hex|sk_hex|private[_-]?key)\s*[:=]\s*["']?[^\s,"']+["']?`),
	regexp.MustCompile(`(?i)(password|passphrase)\s*[:=]\s*["']?[^\s,"']+["']?`),
	regexp.MustCompile(`(?i)(kek-hex|kek_hex)\s*[:=]\s*["']?[^\s,"']+["']?`),
}

const redactedValue = "${1}=[REDACTED]"

// Sanitize strips recognizable secret-labelled values out of s. It is a
// best-effort regex pass over labelled fields, not a general secret
// scanner: anything not preceded by one of the recognized labels above
// passes through unchanged.
func Sanitize(s string) string {
	out := s
	for _, p := range sensitivePatterns {
		out = p.ReplaceAllString(out, redactedValue)
	}
	return out
}
