package inbound

import (
	"log/slog"
	"time"
)

// Normalizer turns raw webhook bodies into InboundEvents.
type Normalizer struct {
	// BotID is the gateway's own chat id; contact updates from it are status noise.
	BotID string

	Now func() time.Time
	Log *slog.Logger
}

func New(botID string, log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{BotID: botID, Now: time.Now, Log: log}
}

// Normalize never fails: malformed input, status payloads and internal faults all
// yield an empty slice. Only events with FromMe or a (Phone, Text) pair are returned.
func (n *Normalizer) Normalize(raw []byte) (out []InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.log().Error("normalize panic", "panic", r)
			out = nil
		}
	}()

	v, ok := decodePayload(raw)
	if !ok {
		n.log().Debug("undecodable webhook body", "bytes", len(raw))
		return nil
	}

	switch root := v.(type) {
	case map[string]any:
		return n.normalizeObject(root)
	case []any:
		for _, item := range root {
			if obj := asObject(item); obj != nil {
				out = append(out, n.normalizeObject(obj)...)
			}
		}
		return out
	default:
		return nil
	}
}

func (n *Normalizer) normalizeObject(root map[string]any) []InboundEvent {
	for _, ex := range extractors {
		var kept []InboundEvent
		for _, ev := range ex.extract(root, n) {
			if ev.qualifies() {
				kept = append(kept, ev)
			}
		}
		if len(kept) > 0 {
			return kept
		}
	}
	return nil
}

func (n *Normalizer) isBot(chatID string) bool {
	bot := digits(n.BotID)
	return bot != "" && digits(chatID) == bot
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now().UTC()
	}
	return time.Now().UTC()
}

func (n *Normalizer) log() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}
