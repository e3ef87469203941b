package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest requests aggregated pipeline and quality metrics.

type SummaryRequest struct {
	Range      TimeRange `json:"range"`
	CampaignID string    `json:"campaign_id,omitempty"`
}

// PipelineSummary counts calls per lifecycle state within the range.
type PipelineSummary struct {
	TotalCalls       int `json:"total_calls"`
	PendingCalls     int `json:"pending_calls"`
	ProcessingCalls  int `json:"processing_calls"`
	TranscribedCalls int `json:"transcribed_calls"`
	AuditedCalls     int `json:"audited_calls"`
	FailedCalls      int `json:"failed_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}

// QualitySummary aggregates audit outcomes within the range.
type QualitySummary struct {
	Reports             int     `json:"reports"`
	AverageOverallScore float64 `json:"average_overall_score"`
	MinScore            int     `json:"min_score"`
	MaxScore            int     `json:"max_score"`
	// PassRate is the share of reports at or above the passing threshold.
	PassRate float64 `json:"pass_rate"`
}

type Summary struct {
	Range      TimeRange       `json:"range"`
	CampaignID string          `json:"campaign_id,omitempty"`
	Pipeline   PipelineSummary `json:"pipeline"`
	Quality    QualitySummary  `json:"quality"`
}
