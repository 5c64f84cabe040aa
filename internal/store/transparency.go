package store

import (
	"strings"
	"time"
)

// InsertLLMCall appends a transparency-log entry. The full prompt body is
// never passed in — only PromptHash and a pre-truncated PromptPreview.
func (s *Store) InsertLLMCall(r LLMCallRecord) (string, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO llm_calls (id, ts, provider, model, prompt_hash, prompt_preview, prompt_size, response_size,
		                        input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens,
		                        cost_estimate, source, duration_ms, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Timestamp, r.Provider, r.Model, r.PromptHash, r.PromptPreview, r.PromptSize, r.ResponseSize,
		r.InputTokens, r.OutputTokens, r.CacheReadTokens, r.CacheCreationTokens, r.CostEstimate, r.Source,
		r.DurationMS, r.Success, r.ErrorMessage)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// LLMCallFilter narrows GetLLMCalls.
type LLMCallFilter struct {
	Provider string
	Source   string
	Since    *time.Time
}

// GetLLMCalls returns a page of transparency-log entries, newest first.
func (s *Store) GetLLMCalls(f LLMCallFilter, limit, offset int) ([]LLMCallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var where []string
	var args []any
	if f.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, f.Provider)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.Since != nil {
		where = append(where, "ts >= ?")
		args = append(args, *f.Since)
	}

	query := `SELECT id, ts, provider, model, prompt_hash, prompt_preview, prompt_size, response_size,
	                  input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens,
	                  cost_estimate, source, duration_ms, success, error_message
	           FROM llm_calls`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LLMCallRecord
	for rows.Next() {
		var r LLMCallRecord
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Provider, &r.Model, &r.PromptHash, &r.PromptPreview,
			&r.PromptSize, &r.ResponseSize, &r.InputTokens, &r.OutputTokens, &r.CacheReadTokens,
			&r.CacheCreationTokens, &r.CostEstimate, &r.Source, &r.DurationMS, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LLMStats aggregates transparency-log totals over the last `days` days,
// plus today and month-to-date totals.
type LLMStats struct {
	ByProvider map[string]LLMAggregate `json:"by_provider"`
	BySource   map[string]LLMAggregate `json:"by_source"`
	Today      LLMAggregate            `json:"today"`
	MonthToDate LLMAggregate           `json:"month_to_date"`
}

// LLMAggregate is a sum over a set of transparency-log rows.
type LLMAggregate struct {
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostEstimate float64 `json:"cost_estimate"`
}

// GetLLMStats computes GetDailyCosts-style aggregates over the last `days`
// days, grouped by provider and by source, plus today/MTD totals.
func (s *Store) GetLLMStats(days int) (LLMStats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)
	stats := LLMStats{ByProvider: map[string]LLMAggregate{}, BySource: map[string]LLMAggregate{}}

	rows, err := s.db.Query(`
		SELECT provider, source, ts, input_tokens, output_tokens, cost_estimate
		FROM llm_calls WHERE ts >= ?
	`, since)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	for rows.Next() {
		var provider, source string
		var ts time.Time
		var in, out int
		var cost float64
		if err := rows.Scan(&provider, &source, &ts, &in, &out, &cost); err != nil {
			return stats, err
		}
		addAgg(stats.ByProvider, provider, in, out, cost)
		addAgg(stats.BySource, source, in, out, cost)
		if !ts.Before(startOfDay) {
			accumulate(&stats.Today, in, out, cost)
		}
		if !ts.Before(startOfMonth) {
			accumulate(&stats.MonthToDate, in, out, cost)
		}
	}
	return stats, rows.Err()
}

func addAgg(m map[string]LLMAggregate, key string, in, out int, cost float64) {
	a := m[key]
	accumulate(&a, in, out, cost)
	m[key] = a
}

func accumulate(a *LLMAggregate, in, out int, cost float64) {
	a.Calls++
	a.InputTokens += in
	a.OutputTokens += out
	a.CostEstimate += cost
}

// GetDailyCosts returns total cost per calendar day for the last `days`
// days, keyed by YYYY-MM-DD date. The result is a map, so it has no order.
func (s *Store) GetDailyCosts(days int) (map[string]float64, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)
	rows, err := s.db.Query(`SELECT ts, cost_estimate FROM llm_calls WHERE ts >= ?`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var ts time.Time
		var cost float64
		if err := rows.Scan(&ts, &cost); err != nil {
			return nil, err
		}
		out[ts.Format("2006-01-02")] += cost
	}
	return out, rows.Err()
}

// PruneLLMCalls deletes transparency-log rows older than `days` days.
func (s *Store) PruneLLMCalls(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res, err := s.db.Exec(`DELETE FROM llm_calls WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
