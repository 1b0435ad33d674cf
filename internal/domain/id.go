package domain

import "strings"

const (
	recordIDLength = 17
	recordIDPrefix = "rec"
)

// IsRecordID reports whether v is a well-formed external record id:
// a string of exactly 17 alphanumeric characters starting with "rec".
// The prefix check is case-sensitive. Non-string values fail closed.
func IsRecordID(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	if len(s) != recordIDLength || !strings.HasPrefix(s, recordIDPrefix) {
		return false
	}
	for _, r := range s {
		if !isAlnum(r) {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
