package ingest

import (
	"errors"
	"time"
)

var (
	// ErrAgentNotMapped means the external agent identifier has no internal
	// user. The event cannot be attributed and is rejected.
	ErrAgentNotMapped = errors.New("ingest: agent not mapped")
	// ErrDuplicateEvent means this external call id was already ingested.
	// Callers treat it as an idempotent acknowledgment, not a failure.
	ErrDuplicateEvent = errors.New("ingest: duplicate call event")
	ErrInvalidEvent   = errors.New("ingest: invalid call event")
)

// CallEvent is the call-completion payload delivered by the telephony side.
type CallEvent struct {
	ExternalCallID  string     `json:"external_call_id" binding:"required"`
	ExternalAgentID string     `json:"external_agent_id" binding:"required"`
	CampaignID      string     `json:"campaign_id"`
	CallType        string     `json:"call_type"`
	StartedAt       *time.Time `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	DurationSeconds int        `json:"duration_seconds"`
	RecordingURL    string     `json:"recording_url"`
	// Transcript, when supplied, skips the transcription stage entirely.
	Transcript  string `json:"transcript"`
	CustomerID  string `json:"customer_id"`
	Disposition string `json:"disposition"`

	AgentTalkSeconds    int `json:"agent_talk_seconds"`
	CustomerTalkSeconds int `json:"customer_talk_seconds"`
	SilenceSeconds      int `json:"silence_seconds"`
	DeadAirCount        int `json:"dead_air_count"`
	InterruptionCount   int `json:"interruption_count"`
}

func (e CallEvent) Validate() error {
	if e.ExternalCallID == "" {
		return errors.Join(ErrInvalidEvent, errors.New("external_call_id required"))
	}
	if e.ExternalAgentID == "" {
		return errors.Join(ErrInvalidEvent, errors.New("external_agent_id required"))
	}
	if e.RecordingURL == "" && e.Transcript == "" {
		return errors.Join(ErrInvalidEvent, errors.New("recording_url or transcript required"))
	}
	return nil
}

// Duration resolves the call length, preferring the explicit value over the
// timestamp difference.
func (e CallEvent) Duration() int {
	if e.DurationSeconds > 0 {
		return e.DurationSeconds
	}
	if e.StartedAt != nil && e.EndedAt != nil && e.EndedAt.After(*e.StartedAt) {
		return int(e.EndedAt.Sub(*e.StartedAt).Seconds())
	}
	return 0
}
