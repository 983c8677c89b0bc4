package inbound

import "time"

// Provider names the webhook shape an event was extracted from.
type Provider string

const (
	ProviderEvolution Provider = "evolution"
	ProviderCloudAPI  Provider = "cloud_api"
	ProviderWAHA      Provider = "waha"
	ProviderGeneric   Provider = "generic"
)

// InboundEvent is the canonical form of one customer message.
//
// Invariants:
// - Phone holds digits only.
// - FromMe events never reach routing.
// - Events are immutable and are not persisted as-is.
type InboundEvent struct {
	EventID    string    `json:"event_id,omitempty"`
	Phone      string    `json:"phone"`
	Text       string    `json:"text"`
	FromMe     bool      `json:"from_me"`
	ReceivedAt time.Time `json:"received_at"`

	Provider   Provider `json:"provider"`
	SenderName string   `json:"sender_name,omitempty"`
}

// Routable reports whether the event carries what routing needs.
func (e InboundEvent) Routable() bool {
	return !e.FromMe && e.Phone != "" && e.Text != ""
}

// qualifies is the acceptance rule an extractor's output must pass to win.
func (e InboundEvent) qualifies() bool {
	return e.FromMe || (e.Phone != "" && e.Text != "")
}
