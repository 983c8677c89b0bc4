package conversations

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Store for tests and single-process runs.
type MemoryRepo struct {
	mu    sync.Mutex
	turns map[string][]Turn
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{turns: map[string][]Turn{}} }

func (r *MemoryRepo) Append(_ context.Context, t Turn) error {
	if err := validate(t); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns[t.Phone] = append(r.turns[t.Phone], t)
	return nil
}

func (r *MemoryRepo) FetchRecent(_ context.Context, phone string, limit int) ([]Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.turns[phone]
	out := make([]Turn, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}
