// Package pipeline runs one webhook payload from raw bytes to a sent reply.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chat-pipeline/internal/agents"
	"chat-pipeline/internal/campaigns"
	"chat-pipeline/internal/conversations"
	"chat-pipeline/internal/dedup"
	"chat-pipeline/internal/gateway"
	"chat-pipeline/internal/inbound"
	"chat-pipeline/internal/leads"
	"chat-pipeline/internal/metrics"
	"chat-pipeline/internal/routing"
	"chat-pipeline/pkg/logger"
)

// Skip reasons reported in Result.Ignored and Outcome.Skipped.
const (
	SkipNoEvents      = "no_events"
	SkipFromMe        = "from_me"
	SkipIncomplete    = "missing_phone_or_text"
	SkipDuplicate     = "duplicate"
	SkipManualSession = "manual_session"
	SkipInternalError = "internal_error"
)

// Reply send reasons that are not gateway reasons.
const (
	ReasonDryRun         = "dry_run"
	ReasonDuplicateReply = "duplicate_reply"
)

var ErrInvalidReply = errors.New("pipeline: phone and text are required")

type Router interface {
	Route(ctx context.Context, message string, history []conversations.Turn, override string) routing.Decision
}

type Extractor interface {
	Extract(message string, history []conversations.Turn) *leads.Insight
}

type Responder interface {
	Respond(ctx context.Context, req agents.Request) agents.Reply
}

type CampaignTrigger interface {
	Trigger(ctx context.Context, t campaigns.Trigger) (campaigns.Record, bool)
}

type Sender interface {
	Send(ctx context.Context, phone, text string) gateway.DeliveryResult
}

type Deps struct {
	Normalizer *inbound.Normalizer

	// Inbound and Outbound must be independent keyspaces.
	Inbound  dedup.Guard
	Outbound dedup.Guard
	DedupTTL time.Duration

	History      conversations.Store
	HistoryLimit int

	Router    Router
	Extractor Extractor
	Agents    Responder
	Campaigns CampaignTrigger // optional
	Sender    Sender

	// ManualSessionTTL silences the bot for a phone after an operator reply.
	ManualSessionTTL time.Duration

	Now func() time.Time
	Log *slog.Logger
}

type Pipeline struct {
	d Deps
}

func New(d Deps) *Pipeline {
	if d.Normalizer == nil {
		d.Normalizer = inbound.New("", d.Log)
	}
	if d.Inbound == nil {
		d.Inbound = dedup.NewMemoryGuard()
	}
	if d.Outbound == nil {
		d.Outbound = dedup.NewMemoryGuard()
	}
	if d.DedupTTL <= 0 {
		d.DedupTTL = dedup.DefaultTTL
	}
	if d.History == nil {
		d.History = conversations.NewMemoryRepo()
	}
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = routing.DefaultHistoryLimit
	}
	if d.Router == nil {
		d.Router = routing.NewRouter(nil, nil, d.HistoryLimit, d.Log)
	}
	if d.Extractor == nil {
		d.Extractor = leads.NewExtractor(nil, d.Log)
	}
	if d.Agents == nil {
		d.Agents = agents.NewDispatcher(agents.Deps{Log: d.Log})
	}
	if d.ManualSessionTTL <= 0 {
		d.ManualSessionTTL = 15 * time.Minute
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Pipeline{d: d}
}

// Result is what the webhook endpoint returns. OK is false only when the
// payload could not be processed at all.
type Result struct {
	OK        bool      `json:"ok"`
	Ignored   string    `json:"ignored,omitempty"`
	Processed []Outcome `json:"processed,omitempty"`
}

// Outcome summarizes one routed event.
type Outcome struct {
	EventID    string           `json:"event_id,omitempty"`
	Provider   inbound.Provider `json:"provider"`
	Topic      string           `json:"topic"`
	Confidence float64          `json:"confidence"`
	Source     routing.Source   `json:"source"`
	Action     string           `json:"action,omitempty"`
	Lead       *leads.Insight   `json:"lead,omitempty"`

	Sent           bool                   `json:"sent"`
	Variant        string                 `json:"variant,omitempty"`
	Classification gateway.Classification `json:"classification,omitempty"`
	Reason         string                 `json:"reason,omitempty"`

	Campaign *CampaignOutcome `json:"campaign,omitempty"`
}

type CampaignOutcome struct {
	ID     string          `json:"id"`
	Type   campaigns.Type  `json:"type"`
	State  campaigns.State `json:"state"`
	Reason string          `json:"reason,omitempty"`
}

// Handle never returns an error and never panics; every failure is folded
// into the Result.
func (p *Pipeline) Handle(ctx context.Context, raw []byte) (res Result) {
	log := p.d.Log
	if id := logger.RequestID(ctx); id != "" {
		log = log.With("request_id", id)
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", "panic", r)
			res = Result{OK: false, Ignored: SkipInternalError}
		}
	}()

	evs := p.d.Normalizer.Normalize(raw)
	if len(evs) == 0 {
		metrics.WebhookEvents.WithLabelValues("none", "ignored").Inc()
		return Result{OK: true, Ignored: SkipNoEvents}
	}
	dir := inbound.ParseDirectives(raw)

	res.OK = true
	for _, ev := range evs {
		out, skipped := p.process(ctx, log, ev, dir)
		if skipped != "" {
			metrics.WebhookEvents.WithLabelValues(string(ev.Provider), skipped).Inc()
			res.Ignored = skipped
			continue
		}
		metrics.WebhookEvents.WithLabelValues(string(ev.Provider), "processed").Inc()
		res.Processed = append(res.Processed, out)
	}
	if len(res.Processed) > 0 {
		res.Ignored = ""
	}
	return res
}

func (p *Pipeline) process(ctx context.Context, log *slog.Logger, ev inbound.InboundEvent, dir inbound.Directives) (Outcome, string) {
	if ev.FromMe {
		return Outcome{}, SkipFromMe
	}
	if !ev.Routable() {
		return Outcome{}, SkipIncomplete
	}
	if ev.EventID != "" && p.d.Inbound.Seen(ctx, dedup.EventKey(ev.EventID), p.d.DedupTTL) {
		return Outcome{}, SkipDuplicate
	}
	if p.d.Inbound.Seen(ctx, dedup.ContentKey(ev.Phone, ev.Text), p.d.DedupTTL) {
		return Outcome{}, SkipDuplicate
	}

	log = log.With("phone", logger.MaskPhone(ev.Phone), "provider", ev.Provider)
	now := p.d.Now().UTC()
	side := context.WithoutCancel(ctx)

	history, err := p.d.History.FetchRecent(ctx, ev.Phone, p.d.HistoryLimit)
	if err != nil {
		log.Warn("history fetch failed", "err", err)
		history = nil
	}

	if p.inManualSession(history, now) {
		p.persist(side, log, conversations.Turn{Phone: ev.Phone, CustomerText: ev.Text, Timestamp: now})
		log.Info("manual session active, bot silenced")
		return Outcome{}, SkipManualSession
	}

	decision := p.d.Router.Route(ctx, ev.Text, history, dir.TargetTopic)
	metrics.RoutingDecisions.WithLabelValues(string(decision.Topic), string(decision.Source)).Inc()

	insight := p.d.Extractor.Extract(ev.Text, history)
	reply := p.d.Agents.Respond(ctx, agents.Request{
		Topic:        decision.Topic,
		Message:      ev.Text,
		CustomerName: ev.SenderName,
		Insight:      insight,
	})

	out := Outcome{
		EventID:    ev.EventID,
		Provider:   ev.Provider,
		Topic:      string(decision.Topic),
		Confidence: decision.Confidence,
		Source:     decision.Source,
		Action:     reply.Action,
		Lead:       insight,
	}

	if reply.Action != "" && p.d.Campaigns != nil {
		rec, ok := p.d.Campaigns.Trigger(side, campaigns.Trigger{
			Action:       reply.Action,
			Phone:        ev.Phone,
			CustomerName: ev.SenderName,
			Message:      ev.Text,
			Insight:      insight,
			DryRun:       dir.DryRun,
		})
		if ok {
			out.Campaign = &CampaignOutcome{ID: rec.ID, Type: rec.Type, State: rec.State, Reason: rec.Reason}
		}
	}

	delivery := p.sendReply(side, ev.Phone, reply.Text, dir.DryRun)
	out.Sent = delivery.Sent
	out.Variant = delivery.Variant
	out.Classification = delivery.Classification
	out.Reason = delivery.Reason

	p.persist(side, log, conversations.Turn{
		Phone:         ev.Phone,
		CustomerText:  ev.Text,
		BotText:       reply.Text,
		Topic:         decision.Topic,
		SpecialAction: reply.Action,
		Timestamp:     now,
	})

	log.Info("message processed",
		"topic", decision.Topic,
		"confidence", decision.Confidence,
		"source", decision.Source,
		"action", reply.Action,
		"sent", delivery.Sent,
		"reason", delivery.Reason,
	)
	return out, ""
}

func (p *Pipeline) sendReply(ctx context.Context, phone, text string, dryRun bool) gateway.DeliveryResult {
	if strings.TrimSpace(text) == "" {
		return gateway.DeliveryResult{Reason: gateway.ReasonEmpty}
	}
	if dryRun {
		return gateway.DeliveryResult{Reason: ReasonDryRun}
	}
	if p.d.Outbound.Seen(ctx, dedup.ContentKey(phone, text), p.d.DedupTTL) {
		return gateway.DeliveryResult{Reason: ReasonDuplicateReply}
	}
	if p.d.Sender == nil {
		return gateway.DeliveryResult{Reason: gateway.ReasonMissingConfig}
	}
	return p.d.Sender.Send(ctx, phone, text)
}

// inManualSession reports whether an operator replied to this phone within
// ManualSessionTTL. history is newest first.
func (p *Pipeline) inManualSession(history []conversations.Turn, now time.Time) bool {
	for _, t := range history {
		if t.Operator && now.Sub(t.Timestamp) < p.d.ManualSessionTTL {
			return true
		}
	}
	return false
}

func (p *Pipeline) persist(ctx context.Context, log *slog.Logger, t conversations.Turn) {
	if err := p.d.History.Append(ctx, t); err != nil {
		log.Warn("persist turn failed", "err", err)
	}
}

// ManualReply sends an operator's text to phone and records it as an
// operator turn, which opens a manual session for that phone. The turn is
// recorded even when delivery fails.
func (p *Pipeline) ManualReply(ctx context.Context, phone, text string) (gateway.DeliveryResult, error) {
	phone = digitsOnly(phone)
	text = strings.TrimSpace(text)
	if phone == "" || text == "" {
		return gateway.DeliveryResult{}, ErrInvalidReply
	}
	side := context.WithoutCancel(ctx)

	var res gateway.DeliveryResult
	if p.d.Sender == nil {
		res = gateway.DeliveryResult{Reason: gateway.ReasonMissingConfig}
	} else {
		res = p.d.Sender.Send(side, phone, text)
	}
	turn := conversations.Turn{Phone: phone, BotText: text, Operator: true, Timestamp: p.d.Now().UTC()}
	if err := p.d.History.Append(side, turn); err != nil {
		return res, err
	}
	return res, nil
}

// History returns the most recent turns for phone, newest first.
func (p *Pipeline) History(ctx context.Context, phone string, limit int) ([]conversations.Turn, error) {
	phone = digitsOnly(phone)
	if phone == "" {
		return nil, ErrInvalidReply
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return p.d.History.FetchRecent(ctx, phone, limit)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
