package campaigns

import (
	"context"
	"time"
)

// Repository persists campaign records.
type Repository interface {
	Append(ctx context.Context, r Record) error
	Update(ctx context.Context, r Record) error
	// Recent returns records for phone created at or after since.
	Recent(ctx context.Context, phone string, since time.Time) ([]Record, error)
	// List returns one page of matching records, newest first, and the total count.
	List(ctx context.Context, f Filter) ([]Record, int, error)
	// ClaimDue moves up to limit Scheduled records due at now to Pending and
	// returns them. A claimed record is not returned again.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Record, error)
}

type TemplateStore interface {
	// List returns templates of type t (all types when t is empty), oldest first.
	List(ctx context.Context, t Type) ([]Template, error)
	Get(ctx context.Context, id string) (Template, error)
	// Save inserts or replaces a template. Saving a default clears the
	// previous default of the same type.
	Save(ctx context.Context, t Template) (Template, error)
	Delete(ctx context.Context, id string) error
}

type SettingsStore interface {
	Get(ctx context.Context) (Settings, error)
	Put(ctx context.Context, s Settings) error
}
