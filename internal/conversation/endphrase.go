package conversation

import "strings"

// Default termination phrases applied when an agent configures none.
var defaultEndPhrases = []string{
	"not interested",
	"stop calling",
	"remove me from your list",
	"goodbye",
	"don't call again",
}

// EndPhraseMatcher checks recognized speech against a fixed, ordered set of
// case-insensitive substrings. Behavior is deterministic so call termination
// is testable without a live model.
type EndPhraseMatcher struct {
	phrases []string
}

// NewEndPhraseMatcher builds a matcher from the agent's configured phrases,
// falling back to the defaults when none are set. Blank entries are dropped.
func NewEndPhraseMatcher(phrases []string) *EndPhraseMatcher {
	if len(phrases) == 0 {
		phrases = defaultEndPhrases
	}
	cleaned := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &EndPhraseMatcher{phrases: cleaned}
}

// Match returns the first configured phrase contained in the utterance, or
// "" when none match. Phrases are evaluated in configuration order.
func (m *EndPhraseMatcher) Match(utterance string) string {
	lower := strings.ToLower(utterance)
	for _, p := range m.phrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}
