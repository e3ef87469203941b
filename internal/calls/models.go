package calls

import (
	"errors"
	"time"
)

// Call represents one recorded customer interaction tracked through the
// audit pipeline.
//
// Lifecycle invariants:
// - AuditReportID is non-nil iff Status == audited.
// - Transcript is non-nil for transcribed and audited calls.
// - The pipeline never deletes a call; only status and derived fields change.
//
// ProcessingStartedAt is the claim marker for batch runs: a call in
// `processing` older than the configured claim timeout is considered orphaned
// by a crashed worker and may be reclaimed.
type Call struct {
	ID             string `json:"id" db:"id"`
	ExternalCallID string `json:"external_call_id" db:"external_call_id"`
	UserID         string `json:"user_id" db:"user_id"`
	CampaignID     string `json:"campaign_id,omitempty" db:"campaign_id"`
	CallType       string `json:"call_type,omitempty" db:"call_type"`

	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds int        `json:"duration_seconds" db:"duration_seconds"`

	RecordingURL string  `json:"recording_url,omitempty" db:"recording_url"`
	Transcript   *string `json:"transcript,omitempty" db:"transcript"`

	Status        CallStatus `json:"status" db:"status"`
	AuditReportID *string    `json:"audit_report_id,omitempty" db:"audit_report_id"`
	ErrorMessage  string     `json:"error_message,omitempty" db:"error_message"`

	// Talk-timing metadata supplied by the telephony source. The analytics
	// stage performs arithmetic over these values; no audio analysis happens here.
	AgentTalkSeconds    int `json:"agent_talk_seconds" db:"agent_talk_seconds"`
	CustomerTalkSeconds int `json:"customer_talk_seconds" db:"customer_talk_seconds"`
	SilenceSeconds      int `json:"silence_seconds" db:"silence_seconds"`
	DeadAirCount        int `json:"dead_air_count" db:"dead_air_count"`
	InterruptionCount   int `json:"interruption_count" db:"interruption_count"`

	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty" db:"processing_started_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	// StatusPending: ingested, recording not yet transcribed.
	StatusPending CallStatus = "pending"
	// StatusProcessing: claimed by a batch run; transient.
	StatusProcessing CallStatus = "processing"
	// StatusTranscribed: transcript stored, audit not yet completed.
	StatusTranscribed CallStatus = "transcribed"
	// StatusAudited: report persisted and linked. Terminal.
	StatusAudited CallStatus = "audited"
	// StatusFailed: a stage recorded an error; eligible for explicit retry.
	StatusFailed CallStatus = "failed"
)

func (s CallStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusTranscribed, StatusAudited, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition encodes the legal lifecycle moves. `audited` is terminal;
// nothing re-audits an already-audited call automatically. The only backward
// moves are the processing→pending reclaim and the failed→{pending,transcribed}
// explicit retry.
func CanTransition(from, to CallStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusTranscribed || to == StatusFailed
	case StatusProcessing:
		return to == StatusTranscribed || to == StatusAudited || to == StatusFailed || to == StatusPending
	case StatusTranscribed:
		return to == StatusProcessing || to == StatusAudited || to == StatusFailed
	case StatusFailed:
		return to == StatusPending || to == StatusTranscribed
	case StatusAudited:
		return false
	default:
		return false
	}
}

// RetryStage names the pipeline stage a retried call re-enters.
type RetryStage string

const (
	RetryStageTranscription RetryStage = "transcription"
	RetryStageAudit         RetryStage = "audit"
	RetryStageNone          RetryStage = "none"
)

// RetryStageFor picks the re-entry point for a failed call: with a transcript
// it retries at audit, without one at transcription. Non-failed calls are not
// retryable.
func RetryStageFor(c Call) RetryStage {
	if c.Status != StatusFailed {
		return RetryStageNone
	}
	if c.HasTranscript() {
		return RetryStageAudit
	}
	return RetryStageTranscription
}

func (c Call) HasTranscript() bool {
	return c.Transcript != nil && *c.Transcript != ""
}

var (
	ErrNotFound          = errors.New("calls: not found")
	ErrInvalidTransition = errors.New("calls: invalid status transition")
	ErrInvalidArgument   = errors.New("calls: invalid argument")
	ErrAlreadyClaimed    = errors.New("calls: call already claimed")
)

// Validate checks the lifecycle invariants that must hold after every
// transition.
func (c Call) Validate() error {
	if c.ID == "" || c.UserID == "" {
		return ErrInvalidArgument
	}
	if !c.Status.Valid() {
		return ErrInvalidArgument
	}
	if c.Status == StatusAudited {
		if !c.HasTranscript() {
			return errors.New("calls: audited call without transcript")
		}
		if c.AuditReportID == nil || *c.AuditReportID == "" {
			return errors.New("calls: audited call without linked report")
		}
	}
	if c.Status != StatusAudited && c.AuditReportID != nil {
		return errors.New("calls: report linked to non-audited call")
	}
	return nil
}

// StaleProcessing reports whether a processing claim is older than timeout.
func (c Call) StaleProcessing(now time.Time, timeout time.Duration) bool {
	if c.Status != StatusProcessing || c.ProcessingStartedAt == nil {
		return false
	}
	return now.Sub(*c.ProcessingStartedAt) > timeout
}
