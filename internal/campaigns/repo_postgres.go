package campaigns

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-pipeline/pkg/utils"
)

// PostgresRepo stores records in campaign_records. JSON-shaped fields use jsonb.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const recordColumns = `id, type, phone, action, template_id, variables, title, content, state, reason,
insight, delivery, dry_run, scheduled_at, created_at, updated_at`

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" || rec.Phone == "" {
		return ErrInvalidArgument
	}
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	q := `INSERT INTO campaign_records (` + recordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}

func (r *PostgresRepo) Update(ctx context.Context, rec Record) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	const q = `
UPDATE campaign_records
SET type = $2, phone = $3, action = $4, template_id = $5, variables = $6, title = $7, content = $8,
    state = $9, reason = $10, insight = $11, delivery = $12, dry_run = $13, scheduled_at = $14,
    created_at = $15, updated_at = $16
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Recent(ctx context.Context, phone string, since time.Time) ([]Record, error) {
	q := `SELECT ` + recordColumns + ` FROM campaign_records WHERE phone = $1 AND created_at >= $2 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, phone, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Record, int, error) {
	f = f.normalized()
	where, args := filterClause(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaign_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM campaign_records%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := scanRecords(rows)
	return out, total, err
}

func (r *PostgresRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []Record
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		q := `
UPDATE campaign_records
SET state = $1, updated_at = $2
WHERE id IN (
    SELECT id FROM campaign_records
    WHERE state = $3 AND scheduled_at <= $2
    ORDER BY scheduled_at
    LIMIT $4
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + recordColumns
		rows, err := tx.QueryContext(ctx, q, string(StatePending), now.UTC(), string(StateScheduled), limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanRecords(rows)
		return err
	})
	return out, err
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.Phone != "" {
		add("phone = $%d", f.Phone)
	}
	if f.State != "" {
		add("state = $%d", string(f.State))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func recordArgs(rec Record) ([]any, error) {
	vars, err := json.Marshal(rec.Variables)
	if err != nil {
		return nil, err
	}
	insight, err := nullableJSON(rec.Insight)
	if err != nil {
		return nil, err
	}
	delivery, err := nullableJSON(rec.Delivery)
	if err != nil {
		return nil, err
	}
	var scheduled any
	if rec.ScheduledAt != nil {
		scheduled = rec.ScheduledAt.UTC()
	}
	return []any{
		rec.ID,
		string(rec.Type),
		rec.Phone,
		rec.Action,
		rec.TemplateID,
		vars,
		rec.Title,
		rec.Content,
		string(rec.State),
		rec.Reason,
		insight,
		delivery,
		rec.DryRun,
		scheduled,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	}, nil
}

func nullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var rec Record
		var typ, state string
		var vars, insight, delivery []byte
		var scheduled sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&typ,
			&rec.Phone,
			&rec.Action,
			&rec.TemplateID,
			&vars,
			&rec.Title,
			&rec.Content,
			&state,
			&rec.Reason,
			&insight,
			&delivery,
			&rec.DryRun,
			&scheduled,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rec.Type, rec.State = Type(typ), State(state)
		if len(vars) > 0 {
			if err := json.Unmarshal(vars, &rec.Variables); err != nil {
				return nil, fmt.Errorf("campaigns: decode variables of %s: %w", rec.ID, err)
			}
		}
		if len(insight) > 0 {
			if err := json.Unmarshal(insight, &rec.Insight); err != nil {
				return nil, fmt.Errorf("campaigns: decode insight of %s: %w", rec.ID, err)
			}
		}
		if len(delivery) > 0 {
			if err := json.Unmarshal(delivery, &rec.Delivery); err != nil {
				return nil, fmt.Errorf("campaigns: decode delivery of %s: %w", rec.ID, err)
			}
		}
		if scheduled.Valid {
			t := scheduled.Time
			rec.ScheduledAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PostgresTemplates stores templates in campaign_templates. A partial unique
// index keeps one default per type.
type PostgresTemplates struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresTemplates(db *sql.DB) *PostgresTemplates {
	return &PostgresTemplates{db: db, clock: time.Now}
}

const templateColumns = `id, type, name, description, title, body, variables, active, is_default, category, tags, created_at, updated_at`

func (p *PostgresTemplates) List(ctx context.Context, t Type) ([]Template, error) {
	q := `SELECT ` + templateColumns + ` FROM campaign_templates`
	var args []any
	if t != "" {
		q += ` WHERE type = $1`
		args = append(args, string(t))
	}
	q += ` ORDER BY created_at, id`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (p *PostgresTemplates) Get(ctx context.Context, id string) (Template, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM campaign_templates WHERE id = $1`, id)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	return tpl, err
}

func (p *PostgresTemplates) Save(ctx context.Context, t Template) (Template, error) {
	if err := t.validate(); err != nil {
		return Template{}, err
	}
	now := p.clock().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if len(t.Variables) == 0 {
		t.Variables = Placeholders(t.Title + "\n" + t.Body)
	}
	vars, err := json.Marshal(t.Variables)
	if err != nil {
		return Template{}, err
	}
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return Template{}, err
	}

	err = utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if t.Default {
			if _, err := tx.ExecContext(ctx,
				`UPDATE campaign_templates SET is_default = false, updated_at = $1 WHERE type = $2 AND is_default AND id <> $3`,
				now, string(t.Type), t.ID); err != nil {
				return err
			}
		}
		const q = `
INSERT INTO campaign_templates (id, type, name, description, title, body, variables, active, is_default, category, tags, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
    type = EXCLUDED.type, name = EXCLUDED.name, description = EXCLUDED.description,
    title = EXCLUDED.title, body = EXCLUDED.body, variables = EXCLUDED.variables,
    active = EXCLUDED.active, is_default = EXCLUDED.is_default, category = EXCLUDED.category,
    tags = EXCLUDED.tags, updated_at = EXCLUDED.updated_at
RETURNING created_at
`
		return tx.QueryRowContext(ctx, q,
			t.ID, string(t.Type), t.Name, t.Description, t.Title, t.Body, vars,
			t.Active, t.Default, t.Category, tags, t.CreatedAt, t.UpdatedAt,
		).Scan(&t.CreatedAt)
	})
	if utils.IsUniqueViolation(err) {
		return Template{}, fmt.Errorf("%w: another default template for %s was saved concurrently", ErrConflict, t.Type)
	}
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

func (p *PostgresTemplates) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM campaign_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(s rowScanner) (Template, error) {
	var t Template
	var typ string
	var vars, tags []byte
	if err := s.Scan(
		&t.ID,
		&typ,
		&t.Name,
		&t.Description,
		&t.Title,
		&t.Body,
		&vars,
		&t.Active,
		&t.Default,
		&t.Category,
		&tags,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return Template{}, err
	}
	t.Type = Type(typ)
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &t.Variables); err != nil {
			return Template{}, err
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &t.Tags); err != nil {
			return Template{}, err
		}
	}
	return t, nil
}

// PostgresSettings keeps the single settings document in campaign_settings.
type PostgresSettings struct {
	db       *sql.DB
	fallback Settings
}

// NewPostgresSettings returns fallback until settings are first saved.
func NewPostgresSettings(db *sql.DB, fallback Settings) *PostgresSettings {
	return &PostgresSettings{db: db, fallback: fallback}
}

func (p *PostgresSettings) Get(ctx context.Context) (Settings, error) {
	var raw []byte
	var updated time.Time
	err := p.db.QueryRowContext(ctx, `SELECT data, updated_at FROM campaign_settings WHERE id = 1`).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return copySettings(p.fallback.withDefaults()), nil
	}
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("campaigns: decode settings: %w", err)
	}
	s.UpdatedAt = updated
	return s.withDefaults(), nil
}

func (p *PostgresSettings) Put(ctx context.Context, s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}
	s = s.withDefaults()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO campaign_settings (id, data, updated_at) VALUES (1, $1, $2)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
`
	_, err = p.db.ExecContext(ctx, q, raw, s.UpdatedAt.UTC())
	return err
}
