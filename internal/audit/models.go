package audit

import "time"

// Event is an immutable, append-only record of an operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - actor_id and type are required.
// - Audit failures are logged by callers and never block the action itself.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	ActorID   string `json:"actor_id" db:"actor_id"`
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers, depending on the event type.
	Phone        string `json:"phone,omitempty" db:"phone"`
	CampaignType string `json:"campaign_type,omitempty" db:"campaign_type"`
	TemplateID   string `json:"template_id,omitempty" db:"template_id"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeManualReply     EventType = "manual_reply"
	EventTypeSettingsUpdated EventType = "settings_updated"
	EventTypeTemplateSaved   EventType = "template_saved"
	EventTypeTemplateDeleted EventType = "template_deleted"
	EventTypeCampaignTest    EventType = "campaign_test"
)

// Actor identifies who performed an audited action.
type Actor struct {
	ID   string
	Role string
	IP   string
}
