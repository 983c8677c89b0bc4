package conversations

import (
	"context"
	"errors"
)

// Store keeps conversation turns keyed by customer phone.
type Store interface {
	// FetchRecent returns up to limit turns for phone, most recent first.
	FetchRecent(ctx context.Context, phone string, limit int) ([]Turn, error)
	Append(ctx context.Context, t Turn) error
}

var ErrInvalidTurn = errors.New("conversations: invalid turn")

func validate(t Turn) error {
	if t.Phone == "" || t.Timestamp.IsZero() {
		return ErrInvalidTurn
	}
	return nil
}
