package metrics

import (
	"strings"
	"unicode"

	"github.com/torosent/apicontract/internal/result"
)

// FriendlyOutcomeName returns a human-friendly label for why a case did not
// pass, e.g. "Assertion failure" or "Setup error".
func FriendlyOutcomeName(r result.TestResult) string {
	if r.Outcome == result.SetupError {
		return "Setup error"
	}
	return FriendlyKindName(string(r.Kind))
}

// FriendlyKindName humanizes a failure kind such as "TransportError".
func FriendlyKindName(kind string) string {
	cleaned := strings.TrimSpace(kind)
	if cleaned == "" {
		return "Unknown failure"
	}
	words := strings.Fields(humanizeTypeName(cleaned))
	for i := 1; i < len(words); i++ {
		if !isAllUpper(words[i]) {
			words[i] = strings.ToLower(words[i])
		}
	}
	return strings.Join(words, " ")
}

func humanizeTypeName(name string) string {
	if name == "" {
		return ""
	}

	var words []string
	var current []rune
	runes := []rune(name)

	appendWord := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		if isAllUpper(word) {
			words = append(words, word)
		} else {
			words = append(words, capitalize(word))
		}
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				appendWord()
			} else if unicode.IsDigit(r) && !unicode.IsDigit(prev) {
				appendWord()
			}
		}
		current = append(current, r)
	}
	appendWord()

	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	runes := []rune(lower)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
