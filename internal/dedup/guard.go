package dedup

import (
	"context"
	"strings"
	"time"
)

// DefaultTTL is how long a key is remembered when the caller has no better value.
const DefaultTTL = 180 * time.Second

// Guard remembers keys for a bounded time.
//
// Seen registers key with expiry now+ttl and returns false when the key is new;
// it returns true without refreshing the expiry when the key is already present.
// Implementations are safe for concurrent use.
type Guard interface {
	Seen(ctx context.Context, key string, ttl time.Duration) bool
}

// EventKey is the inbound key for a provider event id.
func EventKey(eventID string) string {
	return "evt:" + eventID
}

// ContentKey keys a message by destination and lower-cased, trimmed text.
// Inbound and outbound guards use the same format in separate keyspaces.
func ContentKey(phone, text string) string {
	return "msg:" + phone + "|" + strings.ToLower(strings.TrimSpace(text))
}
