package models

// DateLayout is the calendar date format used by the usage cache and state.
const DateLayout = "2006-01-02"

// DailyActivity is one row of the usage cache's per-day activity table.
type DailyActivity struct {
	Date          string `json:"date"`
	MessageCount  int    `json:"messageCount"`
	SessionCount  int    `json:"sessionCount"`
	ToolCallCount int    `json:"toolCallCount,omitempty"`
}

// DailyModelTokens is one row of the per-day token-by-model table.
type DailyModelTokens struct {
	Date          string         `json:"date"`
	TokensByModel map[string]int `json:"tokensByModel"`
}

// Total sums tokens across all models for the day.
func (d DailyModelTokens) Total() int {
	total := 0
	for _, n := range d.TokensByModel {
		total += n
	}
	return total
}

// ModelUsage holds cumulative per-model usage.
type ModelUsage struct {
	InputTokens              int     `json:"inputTokens"`
	OutputTokens             int     `json:"outputTokens"`
	CacheReadInputTokens     int     `json:"cacheReadInputTokens"`
	CacheCreationInputTokens int     `json:"cacheCreationInputTokens"`
	CostUSD                  float64 `json:"costUSD"`
}

// UsageCache mirrors the Claude Code stats-cache.json file. Unknown fields
// are ignored.
type UsageCache struct {
	DailyActivity    []DailyActivity       `json:"dailyActivity"`
	DailyModelTokens []DailyModelTokens    `json:"dailyModelTokens"`
	ModelUsage       map[string]ModelUsage `json:"modelUsage"`
}

// UsageSnapshot is a derived view of consumption. It is recomputed every
// tick and never persisted.
type UsageSnapshot struct {
	OutputTokens int     `json:"output_tokens"`
	MessageCount int     `json:"message_count"`
	SessionCount int     `json:"session_count"`
	CostUSD      float64 `json:"cost_usd"`
}

// Percent is OutputTokens as a percentage of budget. A budget of zero or
// less yields 0 so no threshold can ever be crossed.
func (u UsageSnapshot) Percent(budget int) float64 {
	if budget <= 0 {
		return 0
	}
	return float64(u.OutputTokens) * 100 / float64(budget)
}

// IsZero reports whether the snapshot carries no usage at all.
func (u UsageSnapshot) IsZero() bool {
	return u == UsageSnapshot{}
}
