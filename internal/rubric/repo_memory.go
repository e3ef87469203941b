package rubric

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory Repository useful for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	items map[string]Template
}

func NewMemoryRepo(templates ...Template) *MemoryRepo {
	r := &MemoryRepo{items: map[string]Template{}}
	for _, t := range templates {
		r.items[t.ID] = t
	}
	return r
}

func (r *MemoryRepo) Put(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[t.ID] = t
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return Template{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) GetDefault(ctx context.Context) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.items {
		if t.IsDefault {
			return t, nil
		}
	}
	return Template{}, ErrNoDefaultTemplate
}
