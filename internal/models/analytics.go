package models

import "time"

// AnalyticsAction is the kind of pipeline operation an event records
type AnalyticsAction string

const (
	ActionFormat        AnalyticsAction = "format"
	ActionRewrite       AnalyticsAction = "rewrite"
	ActionGenerateIdeas AnalyticsAction = "generate_ideas"
)

// AnalyticsEvent is an append-only usage log entry
type AnalyticsEvent struct {
	ID           string          `json:"id"`
	TranscriptID int64           `json:"transcript_id"`
	Action       AnalyticsAction `json:"action_type"`
	Details      map[string]any  `json:"action_details"`
	CreatedAt    time.Time       `json:"created_at"`
}

type CountedValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// AnalyticsSummary aggregates events. Every list is ordered by count, highest first.
type AnalyticsSummary struct {
	PopularOptions []CountedValue `json:"popular_options"`
	PopularFormats []CountedValue `json:"popular_formats"`
	ActionCounts   []CountedValue `json:"action_counts"`
}

// PopularOptionsLimit bounds PopularOptions
const PopularOptionsLimit = 5
