package memory

import (
	"context"
	"regexp"
	"strings"
)

// factPattern matches a user statement to a fact category and key, using
// the first capture group as the value.
type factPattern struct {
	re       *regexp.Regexp
	category string
	key      string
}

var factPatterns = []factPattern{
	{regexp.MustCompile(`(?i)^i(?:'m| am) working on (?:the |a |an )?([a-z0-9][a-z0-9 .,'&-]{1,60})$`), "project", "current"},
	{regexp.MustCompile(`(?i)^(?:my name is|call me|i'm|i am) ([a-z][a-z .'-]{1,40})$`), "user", "name"},
	{regexp.MustCompile(`(?i)^i work (?:at|for) ([a-z0-9][a-z0-9 .,'&-]{1,60})$`), "user", "employer"},
	{regexp.MustCompile(`(?i)^my (?:wife|husband|partner|spouse) (?:is |named )?([a-z][a-z .'-]{1,40})$`), "contact", "partner_name"},
	{regexp.MustCompile(`(?i)^(?:[a-z][a-z .'-]{1,40})'s email (?:is|address is) (\S+@\S+)$`), "contact", "email"},
	{regexp.MustCompile(`(?i)^i prefer (.+)$`), "preference", "general"},
	{regexp.MustCompile(`(?i)^remind me to (.+) every (day|week|month|morning|evening)$`), "routine", "reminder"},
}

// HeuristicExtract derives structured facts from a single conversation
// turn by matching the user message against a small set of statement
// patterns (name, employer, partner, contact email, stated preference,
// active project, recurring reminder). It never calls an LLM: the
// concrete LLM client is out of scope for this tree, so this is the
// extraction path that actually runs, the same way Generator falls back
// to a heuristic formatter rather than an LLM narrative pass.
func HeuristicExtract(_ context.Context, userMessage, _ string, _ []Message) (*ExtractionResult, error) {
	trimmed := strings.TrimSpace(strings.TrimRight(userMessage, "."))

	for _, p := range factPatterns {
		m := p.re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		if value == "" {
			continue
		}
		return &ExtractionResult{
			WorthPersisting: true,
			Facts: []ExtractedFact{
				{Category: p.category, Key: p.key, Value: value, Confidence: 0.6},
			},
		}, nil
	}

	return &ExtractionResult{WorthPersisting: false}, nil
}
