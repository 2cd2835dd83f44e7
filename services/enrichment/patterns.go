package enrichment

import (
	"strings"
	"unicode/utf8"
)

// EmailGuess is one candidate address and the pattern that produced it.
type EmailGuess struct {
	Pattern string `json:"pattern"`
	Email   string `json:"email"`
}

// GeneratePatterns returns candidate addresses for a person at domain in
// probe order. Patterns that need a last name are omitted without one; no
// first name or no domain yields nothing.
func GeneratePatterns(firstName, lastName, domain string) []EmailGuess {
	first := strings.ToLower(strings.TrimSpace(firstName))
	last := strings.ToLower(strings.TrimSpace(lastName))
	d := strings.ToLower(strings.TrimSpace(domain))
	if first == "" || d == "" {
		return []EmailGuess{}
	}

	guesses := make([]EmailGuess, 0, 4)
	if last != "" {
		guesses = append(guesses, EmailGuess{Pattern: "first.last@domain", Email: first + "." + last + "@" + d})
	}
	guesses = append(guesses, EmailGuess{Pattern: "first@domain", Email: first + "@" + d})
	if last != "" {
		guesses = append(guesses,
			EmailGuess{Pattern: "f.last@domain", Email: initial(first) + "." + last + "@" + d},
			EmailGuess{Pattern: "firstl@domain", Email: first + initial(last) + "@" + d},
		)
	}
	return guesses
}

func initial(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ""
	}
	return s[:size]
}
