package reporting

import (
	"context"
	"sync"
	"time"

	"callaudit-platform/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	Calls   []calls.Call
	Reports []ReportStat
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time, campaignID string) ([]calls.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []calls.Call
	for _, c := range r.Calls {
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		if campaignID != "" && c.CampaignID != campaignID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListReportStats(ctx context.Context, from, to time.Time) ([]ReportStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ReportStat
	for _, st := range r.Reports {
		if st.CreatedAt.Before(from) || !st.CreatedAt.Before(to) {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}
