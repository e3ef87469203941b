package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"callaudit-platform/internal/calls"
	"callaudit-platform/pkg/logger"
	"callaudit-platform/pkg/utils"
)

const (
	dedupKeyPrefix = "callaudit:ingest:"
	dedupTTL       = 24 * time.Hour
)

// AgentResolver maps the telephony side's agent identifier to an internal
// user id. The mapping itself is owned by an external collaborator.
type AgentResolver interface {
	Resolve(ctx context.Context, externalAgentID string) (string, error)
}

// Pipeline claims one ingested call and runs its processing stages.
type Pipeline interface {
	ProcessCall(ctx context.Context, callID string) error
}

// Service is the ingest boundary: it validates a call-completion event,
// deduplicates it, creates the Call row, and kicks off processing.
//
// Dedup is two-layered: a Redis SETNX marker for the common duplicate-delivery
// window, and the unique external call id in the database as the durable
// backstop. The marker never outlives a failed insert; it is cleared when the
// row cannot be created, so the sender's redelivery still goes through.
// Duplicate delivery of call-completion webhooks is normal, so a duplicate is
// acknowledged with the existing call rather than rejected.
type Service struct {
	repo     calls.Repository
	resolver AgentResolver
	rdb      *redis.Client
	pipeline Pipeline
	clock    func() time.Time
}

func NewService(repo calls.Repository, resolver AgentResolver, rdb *redis.Client, pipeline Pipeline) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		rdb:      rdb,
		pipeline: pipeline,
		clock:    time.Now,
	}
}

// Ingest records the event as a new Call and triggers its pipeline in the
// background. On a duplicate delivery it returns the already-ingested call
// together with ErrDuplicateEvent.
func (s *Service) Ingest(ctx context.Context, e CallEvent) (calls.Call, error) {
	log := logger.From(ctx).With("external_call_id", e.ExternalCallID)

	if err := e.Validate(); err != nil {
		return calls.Call{}, err
	}

	userID, err := s.resolver.Resolve(ctx, e.ExternalAgentID)
	if err != nil {
		return calls.Call{}, err
	}

	marked, repeat := false, false
	dedupKey := dedupKeyPrefix + e.ExternalCallID
	if s.rdb != nil {
		first, err := utils.MarkOnce(ctx, s.rdb, dedupKey, dedupTTL)
		if err != nil {
			// Redis being down must not block ingest; the DB check below
			// still catches duplicates.
			log.Warn("dedup marker unavailable", "err", err)
		} else {
			marked, repeat = first, !first
		}
	}
	if existing, err := s.repo.GetByExternalID(ctx, e.ExternalCallID); err == nil {
		log.Info("duplicate call event ignored", "call_id", existing.ID)
		return existing, ErrDuplicateEvent
	} else if !errors.Is(err, calls.ErrNotFound) {
		return calls.Call{}, err
	} else if repeat {
		// Marker without a stored call: an earlier delivery died before its
		// insert. Treat this one as the first.
		log.Warn("dedup marker without a stored call, ingesting")
	}

	now := s.clock().UTC()
	c := calls.Call{
		ID:                  uuid.NewString(),
		ExternalCallID:      e.ExternalCallID,
		UserID:              userID,
		CampaignID:          e.CampaignID,
		CallType:            e.CallType,
		DurationSeconds:     e.Duration(),
		RecordingURL:        e.RecordingURL,
		Status:              calls.StatusPending,
		AgentTalkSeconds:    e.AgentTalkSeconds,
		CustomerTalkSeconds: e.CustomerTalkSeconds,
		SilenceSeconds:      e.SilenceSeconds,
		DeadAirCount:        e.DeadAirCount,
		InterruptionCount:   e.InterruptionCount,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if e.StartedAt != nil {
		c.StartedAt = e.StartedAt.UTC()
	} else {
		c.StartedAt = now
	}
	if e.EndedAt != nil {
		ended := e.EndedAt.UTC()
		c.EndedAt = &ended
	}
	if e.Transcript != "" {
		transcript := e.Transcript
		c.Transcript = &transcript
		c.Status = calls.StatusTranscribed
	}

	if err := s.repo.Create(ctx, c); err != nil {
		if marked {
			// Clear the marker so the sender's redelivery is not treated as
			// a duplicate of an event that was never stored.
			if delErr := s.rdb.Del(context.WithoutCancel(ctx), dedupKey).Err(); delErr != nil {
				log.Warn("failed to clear dedup marker", "err", delErr)
			}
		}
		return calls.Call{}, err
	}
	log.Info("call ingested", "call_id", c.ID, "status", c.Status)

	if s.pipeline != nil {
		// Detached from the request context: the webhook response must not
		// wait on transcription or the model.
		bg := context.WithoutCancel(ctx)
		go func() {
			if err := s.pipeline.ProcessCall(bg, c.ID); err != nil {
				logger.From(bg).Error("pipeline failed after ingest", "call_id", c.ID, "err", err)
			}
		}()
	}
	return c, nil
}
