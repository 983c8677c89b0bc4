package conversations

import (
	"time"

	"chat-pipeline/internal/keywords"
)

// Turn is one exchange with a customer: what they wrote and what was answered.
//
// Operator turns are manual replies typed by a human; they carry no CustomerText
// and are ignored by routing history.
type Turn struct {
	ID            string         `json:"id" db:"id"`
	Phone         string         `json:"phone" db:"phone"`
	CustomerText  string         `json:"customer_text,omitempty" db:"customer_text"`
	BotText       string         `json:"bot_text,omitempty" db:"bot_text"`
	Topic         keywords.Topic `json:"topic,omitempty" db:"topic"`
	SpecialAction string         `json:"special_action,omitempty" db:"special_action"`
	Operator      bool           `json:"operator" db:"operator"`
	Timestamp     time.Time      `json:"timestamp" db:"created_at"`
}

// CustomerTexts returns the customer messages of turns in the given order,
// skipping operator turns and empty texts.
func CustomerTexts(turns []Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Operator || t.CustomerText == "" {
			continue
		}
		out = append(out, t.CustomerText)
	}
	return out
}
