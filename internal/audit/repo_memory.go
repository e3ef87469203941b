package audit

import (
	"context"
	"encoding/json"
	"sync"

	"callaudit-platform/internal/calls"
)

// MemoryReportRepo is an in-memory ReportRepository useful for tests.
// Reports are stored through a JSON round-trip so tests exercise the same
// serialization path as the SQL repository.
type MemoryReportRepo struct {
	mu       sync.Mutex
	items    map[string][]byte
	callRepo calls.Repository
}

// NewMemoryReportRepo mirrors the SQL repository's Save contract: callRepo
// receives the audited advance alongside the stored report.
func NewMemoryReportRepo(callRepo calls.Repository) *MemoryReportRepo {
	return &MemoryReportRepo{items: map[string][]byte{}, callRepo: callRepo}
}

func (r *MemoryReportRepo) Save(ctx context.Context, rep Report) error {
	raw, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	if r.callRepo != nil {
		if err := r.callRepo.MarkAudited(ctx, rep.CallID, rep.ID); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[rep.ID] = raw
	return nil
}

func (r *MemoryReportRepo) GetByID(ctx context.Context, id string) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.items[id]
	if !ok {
		return Report{}, ErrReportNotFound
	}
	var rep Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		return Report{}, err
	}
	return rep, nil
}

func (r *MemoryReportRepo) GetByCallID(ctx context.Context, callID string) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest Report
	found := false
	for _, raw := range r.items {
		var rep Report
		if err := json.Unmarshal(raw, &rep); err != nil {
			return Report{}, err
		}
		if rep.CallID != callID {
			continue
		}
		if !found || rep.CreatedAt.After(latest.CreatedAt) {
			latest = rep
			found = true
		}
	}
	if !found {
		return Report{}, ErrReportNotFound
	}
	return latest, nil
}
