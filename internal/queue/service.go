package queue

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

// ErrSweepInProgress is returned when another process already holds the
// batch sweep lock.
var ErrSweepInProgress = errors.New("queue: another batch sweep is running")

const sweepLockKey = "callaudit:batch:sweep"

// CallResult is the per-call outcome of one batch run.
type CallResult struct {
	CallID string           `json:"call_id"`
	Status calls.CallStatus `json:"status"`
	Err    string           `json:"error,omitempty"`
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []CallResult `json:"results"`
}

// CallProcessor runs the pipeline stages for one call the batch has already
// claimed via ClaimBatch.
type CallProcessor interface {
	ProcessClaimed(ctx context.Context, callID string) error
}

// Service is the batch queue processor. It claims a deterministic slice of
// backlogged calls (pending, transcribed, or stale processing rows) and runs
// them sequentially. One call's failure is recorded and the batch continues.
type Service struct {
	repo         calls.Repository
	processor    CallProcessor
	rdb          *redis.Client
	defaultSize  int
	maxSize      int
	claimTimeout time.Duration
	clock        func() time.Time
}

func NewService(repo calls.Repository, processor CallProcessor, rdb *redis.Client, defaultSize, maxSize int, claimTimeout time.Duration) *Service {
	if defaultSize <= 0 {
		defaultSize = 10
	}
	if maxSize <= 0 {
		maxSize = 50
	}
	if claimTimeout <= 0 {
		claimTimeout = 10 * time.Minute
	}
	return &Service{
		repo:         repo,
		processor:    processor,
		rdb:          rdb,
		defaultSize:  defaultSize,
		maxSize:      maxSize,
		claimTimeout: claimTimeout,
		clock:        time.Now,
	}
}

// ProcessBatch drains up to size backlogged calls. size <= 0 uses the
// configured default; any request is capped at the configured maximum.
//
// A Redis lock keyed per deployment keeps concurrent sweeps from racing the
// selection across processes; within the database, ClaimBatch's processing
// marker guarantees each call is handed to exactly one worker regardless.
func (s *Service) ProcessBatch(ctx context.Context, size int) (BatchResult, error) {
	log := logger.From(ctx).With("component", "batch")

	if size <= 0 {
		size = s.defaultSize
	}
	if size > s.maxSize {
		size = s.maxSize
	}

	if s.rdb != nil {
		token := uuid.NewString()
		ok, err := utils.AcquireLock(ctx, s.rdb, sweepLockKey, token, s.claimTimeout)
		if err != nil {
			return BatchResult{}, err
		}
		if !ok {
			return BatchResult{}, ErrSweepInProgress
		}
		defer func() {
			if err := utils.ReleaseLock(context.WithoutCancel(ctx), s.rdb, sweepLockKey, token); err != nil {
				log.Error("failed to release sweep lock", "err", err)
			}
		}()
	}

	now := s.clock().UTC()
	claimed, err := s.repo.ClaimBatch(ctx, size, now.Add(-s.claimTimeout), now)
	if err != nil {
		return BatchResult{}, err
	}
	log.Info("batch claimed", "size", len(claimed), "requested", size)

	result := BatchResult{Processed: len(claimed)}
	for _, c := range claimed {
		err := s.processor.ProcessClaimed(ctx, c.ID)

		item := CallResult{CallID: c.ID}
		if after, getErr := s.repo.GetByID(ctx, c.ID); getErr == nil {
			item.Status = after.Status
		}
		if err != nil {
			item.Err = err.Error()
			result.Failed++
			log.Warn("call failed in batch", "call_id", c.ID, "err", err)
		} else {
			result.Succeeded++
		}
		result.Results = append(result.Results, item)
	}

	log.Info("batch finished", "processed", result.Processed, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}
