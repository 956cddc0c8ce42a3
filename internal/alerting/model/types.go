// Package model holds the alerting domain types shared by stores, the ingestion pipeline and the API.
package model

import "time"

// MetricSample is one observed value of a named metric. Immutable once stored.
type MetricSample struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// AlertRule fires when a metric value relates to Threshold via Comparator.
// LastTriggeredAt and UpdatedAt are advanced by the ingestion pipeline on every firing.
type AlertRule struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	MetricName      string     `json:"metric_name"`
	Threshold       float64    `json:"threshold"`
	Comparator      Comparator `json:"comparator"`
	Message         string     `json:"message"`
	CooldownSeconds int64      `json:"cooldown_seconds"` // 0 disables suppression
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AlertEvent records one firing of one rule. MetricName and Message are copies taken
// at firing time, so the event stays readable after the rule is edited or deleted.
type AlertEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AlertID     string    `json:"alert_id"`
	MetricName  string    `json:"metric_name"`
	MetricValue float64   `json:"metric_value"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"alert_message"`
}

// RulePatch carries the optional fields of a partial rule update. Nil means unchanged.
type RulePatch struct {
	MetricName      *string
	Threshold       *float64
	Comparator      *Comparator
	Message         *string
	CooldownSeconds *int64
}

// Empty reports whether the patch changes nothing.
func (p RulePatch) Empty() bool {
	return p.MetricName == nil && p.Threshold == nil && p.Comparator == nil && p.Message == nil && p.CooldownSeconds == nil
}

// EventFilter narrows an event listing. Empty fields do not filter.
type EventFilter struct {
	MetricName string // case-insensitive substring
	AlertID    string // exact
}

// EventPage is one page of alert events, newest first.
type EventPage struct {
	Events     []AlertEvent `json:"events"`
	NextCursor *string      `json:"nextCursor"`
	HasMore    bool         `json:"hasMore"`
}

// TriggeredAlert summarises a rule that fired during one ingest call.
type TriggeredAlert struct {
	ID         string `json:"id"`
	MetricName string `json:"metric_name"`
	Message    string `json:"message"`
}

// IngestSummary is returned by the ingestion pipeline.
type IngestSummary struct {
	Message         string           `json:"message"`
	Evaluated       int              `json:"evaluated"`
	Triggered       int              `json:"triggered"`
	CooldownSkipped int              `json:"cooldown_skipped"`
	TriggeredAlerts []TriggeredAlert `json:"triggered_alerts"`
}
