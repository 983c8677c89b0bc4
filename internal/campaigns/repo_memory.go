package campaigns

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps records in process. Used by tests and when no database is configured.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, rec Record) error {
	if rec.ID == "" || rec.Phone == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, clone(rec))
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == rec.ID {
			r.records[i] = clone(rec)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) Recent(_ context.Context, phone string, since time.Time) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.records {
		if rec.Phone == phone && !rec.CreatedAt.Before(since) {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

func (r *MemoryRepo) List(_ context.Context, f Filter) ([]Record, int, error) {
	f = f.normalized()
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Record
	for i := len(r.records) - 1; i >= 0; i-- {
		if f.match(r.records[i]) {
			matched = append(matched, r.records[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if f.Offset >= total {
		return []Record{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	out := make([]Record, 0, end-f.Offset)
	for _, rec := range matched[f.Offset:end] {
		out = append(out, clone(rec))
	}
	return out, total, nil
}

func (r *MemoryRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for i := range r.records {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec := &r.records[i]
		if rec.State != StateScheduled || rec.ScheduledAt == nil || rec.ScheduledAt.After(now) {
			continue
		}
		rec.State = StatePending
		rec.UpdatedAt = now
		out = append(out, clone(*rec))
	}
	return out, nil
}

func clone(r Record) Record {
	if r.Variables != nil {
		vars := make(map[string]string, len(r.Variables))
		for k, v := range r.Variables {
			vars[k] = v
		}
		r.Variables = vars
	}
	return r
}

type MemoryTemplates struct {
	mu        sync.Mutex
	templates map[string]Template
	clock     func() time.Time
}

func NewMemoryTemplates() *MemoryTemplates {
	return &MemoryTemplates{templates: map[string]Template{}, clock: time.Now}
}

func (m *MemoryTemplates) List(_ context.Context, t Type) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Template, 0, len(m.templates))
	for _, tpl := range m.templates {
		if t == "" || tpl.Type == t {
			out = append(out, tpl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryTemplates) Get(_ context.Context, id string) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return Template{}, ErrNotFound
	}
	return tpl, nil
}

func (m *MemoryTemplates) Save(_ context.Context, t Template) (Template, error) {
	if err := t.validate(); err != nil {
		return Template{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if prev, ok := m.templates[t.ID]; ok {
		t.CreatedAt = prev.CreatedAt
	} else if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if len(t.Variables) == 0 {
		t.Variables = Placeholders(t.Title + "\n" + t.Body)
	}

	if t.Default {
		for id, other := range m.templates {
			if id != t.ID && other.Type == t.Type && other.Default {
				other.Default = false
				other.UpdatedAt = now
				m.templates[id] = other
			}
		}
	}
	m.templates[t.ID] = t
	return t, nil
}

func (m *MemoryTemplates) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

type MemorySettings struct {
	mu sync.Mutex
	s  Settings
}

func NewMemorySettings(initial Settings) *MemorySettings {
	return &MemorySettings{s: initial.withDefaults()}
}

func (m *MemorySettings) Get(context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySettings(m.s), nil
}

func (m *MemorySettings) Put(_ context.Context, s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = copySettings(s.withDefaults())
	return nil
}

func copySettings(s Settings) Settings {
	types := make(map[Type]TypeSettings, len(s.Types))
	for k, v := range s.Types {
		types[k] = v
	}
	s.Types = types
	return s
}
