// Package transparency wraps LLM call streams and logs every outgoing
// prompt and its cost to internal/store, honoring the guarantee that a
// local log of all outgoing prompts is maintained.
package transparency

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/omnibrain/omnibrain/internal/store"
)

// Pricing is a provider's per-million-token rate table, in USD.
type Pricing struct {
	InputPerMillion          float64
	OutputPerMillion         float64
	CacheReadPerMillion      float64
	CacheCreationPerMillion  float64
}

// PricingTable holds the known provider rates. Unknown providers cost $0 —
// callers should add an entry here rather than estimate blindly.
var PricingTable = map[string]Pricing{
	"anthropic": {InputPerMillion: 3.00, OutputPerMillion: 15.00, CacheReadPerMillion: 0.30, CacheCreationPerMillion: 3.75},
	"openai":    {InputPerMillion: 2.50, OutputPerMillion: 10.00, CacheReadPerMillion: 1.25, CacheCreationPerMillion: 2.50},
	"google":    {InputPerMillion: 1.25, OutputPerMillion: 5.00, CacheReadPerMillion: 0.31, CacheCreationPerMillion: 1.25},
	"ollama":    {},
}

// EstimateCost applies PricingTable[provider] to a token breakdown. Unknown
// providers (including local ones like ollama) cost 0.
func EstimateCost(provider string, inputTokens, outputTokens, cacheReadTokens, cacheCreationTokens int) float64 {
	p, ok := PricingTable[strings.ToLower(provider)]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*p.InputPerMillion +
		float64(outputTokens)/1_000_000*p.OutputPerMillion +
		float64(cacheReadTokens)/1_000_000*p.CacheReadPerMillion +
		float64(cacheCreationTokens)/1_000_000*p.CacheCreationPerMillion
}

// Chunk is the minimal shape a streamed LLM response chunk must expose for
// the Logger to accumulate usage metadata from it.
type Chunk struct {
	Content             string
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// Logger wraps LLM call streams with zero overhead on the streaming path —
// the log write happens after the stream completes.
type Logger struct {
	store *store.Store
	log   *slog.Logger
}

// New builds a Logger persisting through s.
func New(s *store.Store, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{store: s, log: log.With("component", "transparency")}
}

// WrapStream consumes chunks from src, forwarding each one to the returned
// channel unchanged, and logs a single llm_calls row once src closes. The
// forwarding channel is closed when src closes and the log write finishes.
func (t *Logger) WrapStream(src <-chan Chunk, provider, source, promptText string) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		start := time.Now()
		var sb strings.Builder
		var model string
		var inTok, outTok, cacheRead, cacheCreate int

		for chunk := range src {
			if chunk.Content != "" {
				sb.WriteString(chunk.Content)
			}
			if chunk.Model != "" {
				model = chunk.Model
			}
			inTok += chunk.InputTokens
			outTok += chunk.OutputTokens
			cacheRead += chunk.CacheReadTokens
			cacheCreate += chunk.CacheCreationTokens
			out <- chunk
		}

		t.LogCall(provider, model, promptText, sb.String(), inTok, outTok, cacheRead, cacheCreate,
			source, time.Since(start), true, "")
	}()
	return out
}

// LogCall persists a single LLM call. Only a SHA-256 hash and a 500-byte
// preview of the prompt are stored — never the full prompt body.
func (t *Logger) LogCall(provider, model, promptText, responseText string, inputTokens, outputTokens,
	cacheReadTokens, cacheCreationTokens int, source string, duration time.Duration, success bool, errMsg string) {

	preview := promptText
	if len(preview) > 500 {
		preview = preview[:500]
	}
	var hash string
	if promptText != "" {
		sum := sha256.Sum256([]byte(promptText))
		hash = hex.EncodeToString(sum[:])
	}

	rec := store.LLMCallRecord{
		Provider:            provider,
		Model:               model,
		PromptPreview:       preview,
		PromptHash:          hash,
		PromptSize:          len(promptText),
		ResponseSize:        len(responseText),
		InputTokens:         inputTokens,
		OutputTokens:        outputTokens,
		CacheReadTokens:     cacheReadTokens,
		CacheCreationTokens: cacheCreationTokens,
		CostEstimate:        EstimateCost(provider, inputTokens, outputTokens, cacheReadTokens, cacheCreationTokens),
		Source:              source,
		DurationMS:          duration.Milliseconds(),
		Success:             success,
		ErrorMessage:        errMsg,
	}
	if _, err := t.store.InsertLLMCall(rec); err != nil {
		t.log.Error("failed to log LLM call", "error", err)
	}
}

// LogFromHook is a convenience callback shaped for a router's
// post-stream hook: it skips prompt/response text entirely (the hook only
// has token counts) and logs directly.
func (t *Logger) LogFromHook(provider, model string, inputTokens, outputTokens, cacheReadTokens, cacheCreationTokens int, source string) {
	t.LogCall(provider, model, "", "", inputTokens, outputTokens, cacheReadTokens, cacheCreationTokens, source, 0, true, "")
}

// GetCalls returns a page of call history.
func (t *Logger) GetCalls(f store.LLMCallFilter, limit, offset int) ([]store.LLMCallRecord, error) {
	return t.store.GetLLMCalls(f, limit, offset)
}

// GetStats returns aggregated stats over the last `days` days (days <= 0
// means the last 30).
func (t *Logger) GetStats(days int) (store.LLMStats, error) {
	return t.store.GetLLMStats(days)
}

// GetDailyCosts returns a per-day cost breakdown for charting.
func (t *Logger) GetDailyCosts(days int) (map[string]float64, error) {
	return t.store.GetDailyCosts(days)
}

// Prune removes log entries older than `days` days.
func (t *Logger) Prune(days int) (int, error) {
	return t.store.PruneLLMCalls(days)
}
