package events

import (
	"time"

	"github.com/google/uuid"
)

const producer = "chat-pipeline"

// Meta describes one published event.
type Meta struct {
	// Trace / request correlation ID
	CorrelationID *string   `json:"correlation_id,omitempty"`
	ID            string    `json:"id"`
	Producer      *string   `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	// Event name and version, e.g. campaign.record.v1
	Type string `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope wraps data with a fresh id and the current time.
func NewEnvelope(eventType string, data any) Envelope {
	p := producer
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: &p,
			Time:     time.Now().UTC(),
			Type:     eventType,
		},
		Data: data,
	}
}

// WithCorrelation returns a copy of e carrying id as correlation id.
func (e Envelope) WithCorrelation(id string) Envelope {
	if id != "" {
		e.Meta.CorrelationID = &id
	}
	return e
}
