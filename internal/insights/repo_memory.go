package insights

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryRepo is an in-memory Repository useful for tests. Analytics are
// stored through a JSON round-trip so tests catch tag mistakes the same way
// the SQL repository would.
type MemoryRepo struct {
	mu        sync.Mutex
	libraries []KeywordLibrary
	analytics map[string][]byte
}

func NewMemoryRepo(libraries ...KeywordLibrary) *MemoryRepo {
	return &MemoryRepo{libraries: libraries, analytics: map[string][]byte{}}
}

func (r *MemoryRepo) ListActiveLibraries(ctx context.Context) ([]KeywordLibrary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []KeywordLibrary
	for _, lib := range r.libraries {
		if lib.Active {
			out = append(out, lib)
		}
	}
	return out, nil
}

func (r *MemoryRepo) SaveAnalytics(ctx context.Context, a CallAnalytics) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analytics[a.CallID] = raw
	return nil
}

func (r *MemoryRepo) GetByCallID(ctx context.Context, callID string) (CallAnalytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.analytics[callID]
	if !ok {
		return CallAnalytics{}, ErrNotFound
	}
	var a CallAnalytics
	if err := json.Unmarshal(raw, &a); err != nil {
		return CallAnalytics{}, err
	}
	return a, nil
}
