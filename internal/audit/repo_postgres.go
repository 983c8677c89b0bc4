package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to audit_events. The table has no UPDATE or DELETE
// path in code.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_id, actor_role, ip_address, phone, campaign_type, template_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.ActorID,
		e.ActorRole,
		e.IPAddress,
		e.Phone,
		e.CampaignType,
		e.TemplateID,
		e.Message,
		e.Metadata,
		e.CreatedAt.UTC(),
	)
	return err
}

func (r *PostgresRepo) Recent(ctx context.Context, limit int) ([]Event, error) {
	const q = `
SELECT id, type, actor_id, actor_role, ip_address, phone, campaign_type, template_id, message, metadata, created_at
FROM audit_events
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(
			&e.ID,
			&typ,
			&e.ActorID,
			&e.ActorRole,
			&e.IPAddress,
			&e.Phone,
			&e.CampaignType,
			&e.TemplateID,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
