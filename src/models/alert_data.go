package models

import "time"

// AlertData is the data available to the usage alert template.
type AlertData struct {
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Percent        float64 `json:"percent"`
	CostUSD        float64 `json:"cost_usd"`
	OutputTokens   int     `json:"output_tokens"`
	DailyBudget    int     `json:"daily_budget"`
	Messages       int     `json:"messages"`
	Sessions       int     `json:"sessions"`
	WeeklyTokens   int     `json:"weekly_tokens"`
	WeeklyMessages int     `json:"weekly_messages"`
}

// NewAlertData builds template data from the current snapshots.
func NewAlertData(daily, weekly UsageSnapshot, budget int, now time.Time) *AlertData {
	utc := now.UTC()
	return &AlertData{
		Date:           utc.Format(DateLayout),
		Time:           utc.Format("15:04"),
		Percent:        daily.Percent(budget),
		CostUSD:        daily.CostUSD,
		OutputTokens:   daily.OutputTokens,
		DailyBudget:    budget,
		Messages:       daily.MessageCount,
		Sessions:       daily.SessionCount,
		WeeklyTokens:   weekly.OutputTokens,
		WeeklyMessages: weekly.MessageCount,
	}
}
