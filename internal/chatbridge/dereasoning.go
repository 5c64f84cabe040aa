package chatbridge

import (
	"regexp"
	"strings"
)

// reasoningPatterns match lines that look like an agent's internal
// planning/investigation narration rather than an answer meant for the
// user — ported from the original _strip_agent_internals /
// _looks_like_agent_reasoning pair (spec.md §4.10's "de-reasoning
// filter").
var reasoningPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^Now I need to.*$`),
	regexp.MustCompile(`(?im)^I(?:'ve| have) completed Phase.*$`),
	regexp.MustCompile(`(?im)^\[FINDING:.*$`),
	regexp.MustCompile(`(?im)^Phase \d+:.*$`),
	regexp.MustCompile(`(?im)^Excellent!.*analysis.*$`),
	regexp.MustCompile(`(?im)^I(?:'m| am) now (?:going to|ready to|starting).*$`),
	regexp.MustCompile(`(?im)^Let me (?:analyze|investigate|examine|check).*$`),
	regexp.MustCompile(`(?im)^This (?:sets up|is|marks).*Phase.*$`),
}

// reasoningMarkers is the same set of phrases as a substring/lowercase
// check, used to skip whole memory snippets before they are ever
// re-injected into a prompt (cheaper than running every regex per doc).
var reasoningMarkers = []string{
	"now i need to",
	"i've completed phase",
	"phase 1:", "phase 2:", "phase 3:",
	"[finding:",
	"this sets up phase",
	"i'm now ready to investigate",
	"let me analyze this",
	"excellent! i've completed",
}

// stripAgentInternals removes lines of internal reasoning from text
// before it is persisted to memory, preventing the feedback loop where
// the model sees and repeats its own prior narration.
func stripAgentInternals(text string) string {
	out := text
	for _, re := range reasoningPatterns {
		out = re.ReplaceAllString(out, "")
	}
	return out
}

// looksLikeAgentReasoning reports whether text is internal narration that
// should never be re-injected as a memory snippet.
func looksLikeAgentReasoning(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range reasoningMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
