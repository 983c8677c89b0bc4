package conversations

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"chat-pipeline/internal/keywords"
)

// PostgresRepo stores turns in conversation_turns.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, t Turn) error {
	if err := validate(t); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	const q = `
INSERT INTO conversation_turns (id, phone, customer_text, bot_text, topic, special_action, operator, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err := r.db.ExecContext(ctx, q,
		t.ID,
		t.Phone,
		t.CustomerText,
		t.BotText,
		string(t.Topic),
		t.SpecialAction,
		t.Operator,
		t.Timestamp.UTC(),
	)
	return err
}

func (r *PostgresRepo) FetchRecent(ctx context.Context, phone string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, phone, customer_text, bot_text, topic, special_action, operator, created_at
FROM conversation_turns
WHERE phone = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var topic string
		if err := rows.Scan(
			&t.ID,
			&t.Phone,
			&t.CustomerText,
			&t.BotText,
			&topic,
			&t.SpecialAction,
			&t.Operator,
			&t.Timestamp,
		); err != nil {
			return nil, err
		}
		t.Topic = keywords.Topic(topic)
		out = append(out, t)
	}
	return out, rows.Err()
}
