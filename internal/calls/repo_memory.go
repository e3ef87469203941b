package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use. Transition legality is enforced so
// tests exercise the same state machine as the SQL schema constraints.
type MemoryRepo struct {
	mu    sync.Mutex
	items map[string]Call
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: map[string]Call{}}
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		return ErrInvalidArgument
	}
	r.items[c.ID] = c
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByExternalID(ctx context.Context, externalID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.ExternalCallID == externalID {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemoryRepo) Claim(ctx context.Context, id string, now time.Time) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	if c.Status == StatusProcessing {
		return Call{}, ErrAlreadyClaimed
	}
	if c.Status != StatusPending && c.Status != StatusTranscribed {
		return Call{}, ErrInvalidTransition
	}
	t := now
	c.Status = StatusProcessing
	c.ProcessingStartedAt = &t
	c.UpdatedAt = now
	r.items[id] = c
	return c, nil
}

func (r *MemoryRepo) StoreTranscript(ctx context.Context, id, transcript string) error {
	return r.update(id, func(c *Call) error {
		if c.Status != StatusProcessing {
			return ErrInvalidTransition
		}
		c.Transcript = &transcript
		c.ErrorMessage = ""
		return nil
	})
}

func (r *MemoryRepo) MarkAudited(ctx context.Context, id, reportID string) error {
	return r.update(id, func(c *Call) error {
		if !CanTransition(c.Status, StatusAudited) {
			return ErrInvalidTransition
		}
		c.Status = StatusAudited
		c.AuditReportID = &reportID
		c.ErrorMessage = ""
		c.ProcessingStartedAt = nil
		return nil
	})
}

func (r *MemoryRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.update(id, func(c *Call) error {
		if !CanTransition(c.Status, StatusFailed) {
			return ErrInvalidTransition
		}
		c.Status = StatusFailed
		c.ErrorMessage = errMsg
		c.ProcessingStartedAt = nil
		return nil
	})
}

func (r *MemoryRepo) ReleaseToTranscribed(ctx context.Context, id, errMsg string) error {
	return r.update(id, func(c *Call) error {
		if c.Status != StatusProcessing && c.Status != StatusTranscribed {
			return ErrInvalidTransition
		}
		c.Status = StatusTranscribed
		c.ErrorMessage = errMsg
		c.ProcessingStartedAt = nil
		return nil
	})
}

func (r *MemoryRepo) ResetForRetry(ctx context.Context, id string, to CallStatus) error {
	if to != StatusPending && to != StatusTranscribed {
		return ErrInvalidTransition
	}
	return r.update(id, func(c *Call) error {
		if c.Status != StatusFailed {
			return ErrInvalidTransition
		}
		c.Status = to
		c.ErrorMessage = ""
		c.ProcessingStartedAt = nil
		return nil
	})
}

func (r *MemoryRepo) ClaimBatch(ctx context.Context, limit int, staleBefore, now time.Time) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []Call
	for _, c := range r.items {
		switch {
		case (c.Status == StatusPending || c.Status == StatusTranscribed) &&
			(c.RecordingURL != "" || c.HasTranscript()):
			candidates = append(candidates, c)
		case c.Status == StatusProcessing && c.ProcessingStartedAt != nil && c.ProcessingStartedAt.Before(staleBefore):
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	claimed := make([]Call, 0, len(candidates))
	for _, c := range candidates {
		stored := r.items[c.ID]
		t := now
		stored.Status = StatusProcessing
		stored.ProcessingStartedAt = &t
		stored.UpdatedAt = now
		r.items[c.ID] = stored
		claimed = append(claimed, stored)
	}
	return claimed, nil
}

func (r *MemoryRepo) update(id string, fn func(*Call) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&c); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	r.items[id] = c
	return nil
}
