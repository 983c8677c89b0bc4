package reporting

import (
	"context"
	"sync"
	"time"

	"chat-pipeline/internal/campaigns"
)

// MemoryRepo serves fixed records for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	Records []campaigns.Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCampaignRecords(ctx context.Context, from, to time.Time, typ string) ([]campaigns.Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]campaigns.Record, 0)
	for _, rec := range r.Records {
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			continue
		}
		if typ != "" && string(rec.Type) != typ {
			continue
		}
		out = append(out, rec)
	}
	return out, false, nil
}
