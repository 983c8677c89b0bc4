package inbound

import (
	"strings"
	"time"
)

// extractor turns one decoded payload into candidate events for a single provider shape.
type extractor struct {
	provider Provider
	extract  func(root map[string]any, n *Normalizer) []InboundEvent
}

// extractors run in priority order; the first one producing a qualifying event wins.
var extractors = []extractor{
	{ProviderEvolution, extractEvolution},
	{ProviderCloudAPI, extractCloudAPI},
	{ProviderWAHA, extractWAHA},
	{ProviderGeneric, extractGeneric},
}

// Evolution event names that never carry customer text.
var evolutionStatusEvents = map[string]bool{
	"messages.update":   true,
	"messages.delete":   true,
	"message.ack":       true,
	"connection.update": true,
	"presence.update":   true,
	"qrcode.updated":    true,
	"chats.update":      true,
	"chats.upsert":      true,
	"chats.delete":      true,
	"contacts.upsert":   true,
	"groups.update":     true,
	"call":              true,
}

const evolutionContactsUpdate = "contacts.update"

var evolutionTextPaths = [][]string{
	{"text"},
	{"message"},
	{"body"},
	{"mensagem"},
	{"msg"},
	{"message", "conversation"},
	{"message", "extendedTextMessage", "text"},
	{"message", "ephemeralMessage", "message", "extendedTextMessage", "text"},
	{"message", "listResponseMessage", "title"},
	{"message", "buttonsResponseMessage", "selectedDisplayText"},
}

func extractEvolution(root map[string]any, n *Normalizer) []InboundEvent {
	event := strings.ReplaceAll(strings.ToLower(text(root, "event")), "_", ".")
	if evolutionStatusEvents[event] {
		return nil
	}

	var items []map[string]any
	switch d := root["data"].(type) {
	case map[string]any:
		items = append(items, d)
	case []any:
		for _, v := range d {
			if m := asObject(v); m != nil {
				items = append(items, m)
			}
		}
	}
	if len(items) == 0 {
		for _, v := range asArray(root["messages"]) {
			if m := asObject(v); m != nil {
				items = append(items, m)
			}
		}
	}
	if len(items) == 0 {
		items = append(items, root)
	}

	_, hasEvent := root["event"]
	_, hasInstance := root["instance"]
	envelope := hasEvent || hasInstance

	var out []InboundEvent
	for _, it := range items {
		if !envelope && asObject(it["key"]) == nil && asObject(it["message"]) == nil {
			continue
		}
		if event == evolutionContactsUpdate {
			chat := firstText(it, []string{"remoteJid"}, []string{"id"}, []string{"key", "remoteJid"})
			if chat == "" || n.isBot(chat) {
				continue
			}
		}
		out = append(out, evolutionEvent(root, it, n.now()))
	}
	return out
}

func evolutionEvent(root, it map[string]any, now time.Time) InboundEvent {
	ev := InboundEvent{
		Provider:   ProviderEvolution,
		ReceivedAt: now,
		SenderName: text(it, "pushName"),
		EventID:    firstText(it, []string{"key", "id"}, []string{"id"}),
	}
	if ev.EventID == "" {
		ev.EventID = firstText(root, []string{"key", "id"}, []string{"id"})
	}
	if ts, ok := unixTime(it["messageTimestamp"]); ok {
		ev.ReceivedAt = ts
	}

	if truthy(it["fromMe"]) || truthy(lookup(it, "key", "fromMe")) || truthy(lookup(it, "message", "fromMe")) {
		ev.FromMe = true
		return ev
	}

	phone := ""
	for _, k := range []string{"number", "from", "telefone", "phone"} {
		if phone = scalar(it[k]); phone != "" {
			break
		}
	}
	if phone == "" {
		phone = firstText(it, []string{"key", "remoteJid"}, []string{"remoteJid"}, []string{"chatId"}, []string{"sender"})
	}
	ev.Phone = digits(phone)
	ev.Text = firstText(it, evolutionTextPaths...)
	return ev
}

func extractCloudAPI(root map[string]any, n *Normalizer) []InboundEvent {
	var out []InboundEvent
	for _, e := range asArray(root["entry"]) {
		for _, ch := range asArray(lookup(asObject(e), "changes")) {
			val := asObject(lookup(asObject(ch), "value"))
			if val == nil {
				continue
			}
			contact := asObject(firstOf(asArray(val["contacts"])))
			for _, raw := range asArray(val["messages"]) {
				m := asObject(raw)
				if m == nil {
					continue
				}
				ev := InboundEvent{
					Provider:   ProviderCloudAPI,
					EventID:    text(m, "id"),
					ReceivedAt: n.now(),
					SenderName: text(contact, "profile", "name"),
				}
				if ts, ok := unixTime(m["timestamp"]); ok {
					ev.ReceivedAt = ts
				}
				phone := scalar(m["from"])
				if phone == "" {
					phone = scalar(contact["wa_id"])
				}
				ev.Phone = digits(phone)

				switch text(m, "type") {
				case "text":
					ev.Text = text(m, "text", "body")
				case "button":
					ev.Text = text(m, "button", "text")
				case "interactive":
					ev.Text = firstText(m,
						[]string{"interactive", "button_reply", "title"},
						[]string{"interactive", "list_reply", "title"},
					)
				default:
					ev.Text = firstText(m, []string{"text", "body"}, []string{"body"})
				}
				out = append(out, ev)
			}
		}
	}
	return out
}

func extractWAHA(root map[string]any, n *Normalizer) []InboundEvent {
	var out []InboundEvent

	sd, md := asObject(root["senderData"]), asObject(root["messageData"])
	if sd != nil && md != nil {
		ev := InboundEvent{
			Provider:   ProviderWAHA,
			EventID:    firstText(root, []string{"idMessage"}, []string{"id"}),
			ReceivedAt: n.now(),
			SenderName: firstText(sd, []string{"senderName"}, []string{"chatName"}),
			FromMe:     truthy(md["fromMe"]) || strings.HasPrefix(text(root, "typeWebhook"), "outgoing"),
		}
		if ev.EventID == "" {
			ev.EventID = text(md, "id")
		}
		if ts, ok := unixTime(root["timestamp"]); ok {
			ev.ReceivedAt = ts
		}
		phone := scalar(sd["sender"])
		if phone == "" {
			phone = text(sd, "chatId")
		}
		ev.Phone = digits(phone)
		ev.Text = firstText(md,
			[]string{"textMessageData", "textMessage"},
			[]string{"extendedTextMessageData", "text"},
			[]string{"extendedTextMessage", "text"},
			[]string{"text"},
		)
		out = append(out, ev)
	}

	switch text(root, "event") {
	case "message", "message.any":
		if p := asObject(root["payload"]); p != nil {
			ev := InboundEvent{
				Provider:   ProviderWAHA,
				EventID:    text(p, "id"),
				ReceivedAt: n.now(),
				SenderName: text(p, "_data", "notifyName"),
				FromMe:     truthy(p["fromMe"]),
				Phone:      digits(firstText(p, []string{"from"}, []string{"chatId"})),
				Text:       text(p, "body"),
			}
			if ts, ok := unixTime(p["timestamp"]); ok {
				ev.ReceivedAt = ts
			}
			out = append(out, ev)
		}
	}

	for _, raw := range asArray(root["messages"]) {
		m := asObject(raw)
		if m == nil {
			continue
		}
		phone := digits(text(m, "chatId"))
		if phone == "" {
			phone = digits(scalar(m["sender"]))
		}
		out = append(out, InboundEvent{
			Provider:   ProviderWAHA,
			EventID:    text(m, "id"),
			ReceivedAt: n.now(),
			FromMe:     truthy(m["fromMe"]),
			Phone:      phone,
			Text:       firstText(m, []string{"text"}, []string{"body"}),
		})
	}
	return out
}

func extractGeneric(root map[string]any, n *Normalizer) []InboundEvent {
	phone := ""
	for _, k := range []string{"from", "number", "sender", "chatId", "telefone", "phone"} {
		if phone = scalar(root[k]); phone != "" {
			break
		}
	}
	ev := InboundEvent{
		Provider:   ProviderGeneric,
		EventID:    scalar(root["id"]),
		ReceivedAt: n.now(),
		Phone:      digits(phone),
		Text: firstText(root,
			[]string{"text"},
			[]string{"message", "conversation"},
			[]string{"message"},
			[]string{"body"},
			[]string{"mensagem"},
		),
	}
	return []InboundEvent{ev}
}

func firstOf(a []any) any {
	if len(a) == 0 {
		return nil
	}
	return a[0]
}
