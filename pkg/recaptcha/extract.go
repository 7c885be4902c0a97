package recaptcha

import "strings"

// ExtractBetween returns the substring of s strictly between the first
// occurrence of open and the first occurrence of close after it. The second
// return value is false when either marker is missing.
//
// The legacy endpoints answer with semi-structured text whose exact grammar
// was never documented upstream; the marker scrape is the contract, not a
// shortcut around a real parser.
func ExtractBetween(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	start += len(open)

	end := strings.Index(s[start:], close)
	if end < 0 {
		return "", false
	}

	return s[start : start+end], true
}
