package campaigns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chat-pipeline/internal/dedup"
	"chat-pipeline/internal/events"
	"chat-pipeline/internal/gateway"
	"chat-pipeline/internal/keywords"
	"chat-pipeline/internal/leads"
	"chat-pipeline/internal/metrics"
	"chat-pipeline/pkg/logger"
)

// RecordEventType is the routing key and event type of published records.
const RecordEventType = "campaign.record.v1"

// Sender delivers campaign text. *gateway.Adapter implements it.
type Sender interface {
	Send(ctx context.Context, phone, text string) gateway.DeliveryResult
}

type Deps struct {
	Records   Repository
	Templates TemplateStore
	Settings  SettingsStore
	Sender    Sender

	// Outbound guards against sending the same content twice; nil disables it.
	Outbound    dedup.Guard
	OutboundTTL time.Duration

	Publisher events.Publisher
	Table     *keywords.Table
	Company   Company
	Location  *time.Location
	Now       func() time.Time
	Log       *slog.Logger
}

// Engine turns handler actions into campaign records.
//
// Pending -> Ineligible | Eligible
// Eligible -> Sent | Failed | Scheduled
// Scheduled -> Sent | Failed (SendDue)
type Engine struct {
	d Deps
}

func NewEngine(d Deps) *Engine {
	if d.Records == nil {
		d.Records = NewMemoryRepo()
	}
	if d.Templates == nil {
		d.Templates = NewMemoryTemplates()
	}
	if d.Settings == nil {
		d.Settings = NewMemorySettings(DefaultSettings())
	}
	if d.OutboundTTL <= 0 {
		d.OutboundTTL = dedup.DefaultTTL
	}
	if d.Publisher == nil {
		d.Publisher = events.Noop{}
	}
	if d.Table == nil {
		d.Table = keywords.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Engine{d: d}
}

// Trigger is one handler action for one customer.
type Trigger struct {
	Action       string
	Phone        string
	CustomerName string
	Message      string
	Insight      *leads.Insight
	Variables    map[string]string
	TemplateID   string
	DryRun       bool
}

// Trigger runs the action through eligibility, rendering and dispatch. The
// bool is false when the action has no campaign type; no record exists then.
func (e *Engine) Trigger(ctx context.Context, t Trigger) (Record, bool) {
	typ, ok := TypeForAction(t.Action)
	if !ok {
		e.d.Log.Warn("unmapped campaign action", "action", t.Action, "phone", logger.MaskPhone(t.Phone))
		return Record{}, false
	}

	now := e.d.Now().UTC()
	rec := Record{
		ID:        uuid.NewString(),
		Type:      typ,
		Phone:     t.Phone,
		Action:    t.Action,
		Insight:   t.Insight,
		DryRun:    t.DryRun,
		State:     StatePending,
		CreatedAt: now,
	}

	settings := e.settings(ctx)
	if reason := e.eligibility(ctx, settings, typ, t.Phone, t.Insight, now); reason != "" {
		rec.State, rec.Reason = StateIneligible, reason
		return e.store(ctx, rec, false), true
	}
	rec.State = StateEligible

	explicit := t.TemplateID
	if explicit == "" {
		explicit = settings.Types[typ].TemplateID
	}
	if !e.render(ctx, &rec, explicit, t) {
		return e.store(ctx, rec, false), true
	}

	switch {
	case rec.DryRun:
		rec.Reason = ReasonDryRun
	case settings.Types[typ].DelayMinutes > 0:
		at := now.Add(time.Duration(settings.Types[typ].DelayMinutes) * time.Minute)
		rec.State, rec.Reason, rec.ScheduledAt = StateScheduled, ReasonDelayed, &at
	default:
		if open, inside := settings.SendWindow.NextOpen(now, e.d.Location); !inside {
			at := open.UTC()
			rec.State, rec.Reason, rec.ScheduledAt = StateScheduled, ReasonOutsideSendWindow, &at
			break
		}
		e.deliver(ctx, &rec)
	}
	return e.store(ctx, rec, false), true
}

// TestRequest renders a campaign type for a phone outside the automation
// rules. DryRun skips the send.
type TestRequest struct {
	Type         Type              `json:"type"`
	TemplateID   string            `json:"template_id,omitempty"`
	Phone        string            `json:"phone"`
	CustomerName string            `json:"customer_name,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
	DryRun       bool              `json:"dry_run"`
}

func (e *Engine) Test(ctx context.Context, req TestRequest) (Record, error) {
	if !req.Type.Valid() || req.Phone == "" {
		return Record{}, ErrInvalidArgument
	}
	now := e.d.Now().UTC()
	rec := Record{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Phone:     req.Phone,
		DryRun:    req.DryRun,
		State:     StateEligible,
		CreatedAt: now,
	}
	trig := Trigger{Phone: req.Phone, CustomerName: req.CustomerName, Variables: req.Variables}
	if e.render(ctx, &rec, req.TemplateID, trig) {
		if req.DryRun {
			rec.Reason = ReasonDryRun
		} else {
			e.deliver(ctx, &rec)
		}
	}
	return e.store(ctx, rec, false), nil
}

// SendDue sends scheduled records whose time has come and returns how many
// were processed.
func (e *Engine) SendDue(ctx context.Context, limit int) (int, error) {
	due, err := e.d.Records.ClaimDue(ctx, e.d.Now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("campaigns: claim due records: %w", err)
	}
	for _, rec := range due {
		e.deliver(ctx, &rec)
		e.store(ctx, rec, true)
	}
	return len(due), nil
}

func (e *Engine) settings(ctx context.Context) Settings {
	s, err := e.d.Settings.Get(ctx)
	if err != nil {
		e.d.Log.Warn("campaign settings unavailable, using defaults", "err", err)
		return DefaultSettings()
	}
	return s.withDefaults()
}

// eligibility returns the first failing rule, or "".
func (e *Engine) eligibility(ctx context.Context, s Settings, typ Type, phone string, in *leads.Insight, now time.Time) string {
	if !s.AutomationEnabled {
		return ReasonAutomationDisabled
	}
	ts, ok := s.Types[typ]
	if !ok || !ts.Enabled {
		return ReasonTypeDisabled
	}

	repeatFrom := now.Add(-time.Duration(s.RepeatWindowHours) * time.Hour)
	dayStart := startOfDay(now, e.d.Location)
	since := repeatFrom
	if dayStart.Before(since) {
		since = dayStart
	}
	recent, err := e.d.Records.Recent(ctx, phone, since)
	if err != nil {
		e.d.Log.Warn("campaign history unavailable", "phone", logger.MaskPhone(phone), "err", err)
	}

	today := 0
	for _, r := range recent {
		if !r.counts() {
			continue
		}
		if r.Type == typ && !r.CreatedAt.Before(repeatFrom) {
			return ReasonRepeatWindow
		}
		if !r.CreatedAt.Before(dayStart) {
			today++
		}
	}
	if today >= s.MaxPerPhonePerDay {
		return ReasonDailyLimit
	}
	if in.ScoreOf() < ts.ScoreFloor {
		return ReasonScoreFloor
	}
	return ""
}

// render selects a template and fills rec. It returns false and marks rec
// Failed when no template is usable.
func (e *Engine) render(ctx context.Context, rec *Record, explicit string, t Trigger) bool {
	tpl, err := e.selectTemplate(ctx, rec.Type, explicit)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.d.Log.Warn("campaign templates unavailable", "type", rec.Type, "err", err)
		}
		rec.State, rec.Reason = StateFailed, ReasonNoTemplate
		return false
	}

	vars := BuildVariables(VariableInput{
		Phone:        rec.Phone,
		CustomerName: t.CustomerName,
		Message:      t.Message,
		Insight:      t.Insight,
		Company:      e.d.Company,
		Now:          rec.CreatedAt,
		Location:     e.d.Location,
		Table:        e.d.Table,
	})
	for k, v := range t.Variables {
		vars[k] = v
	}

	rec.TemplateID = tpl.ID
	rec.Variables = vars
	rec.Title = Render(tpl.Title, vars)
	rec.Content = Render(tpl.Body, vars)
	return true
}

// selectTemplate prefers the explicit id, then the type's default, then any
// active template of the type.
func (e *Engine) selectTemplate(ctx context.Context, typ Type, explicit string) (Template, error) {
	if explicit != "" {
		tpl, err := e.d.Templates.Get(ctx, explicit)
		if err == nil && tpl.Type == typ && tpl.Active {
			return tpl, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Template{}, err
		}
	}
	list, err := e.d.Templates.List(ctx, typ)
	if err != nil {
		return Template{}, err
	}
	for _, tpl := range list {
		if tpl.Active && tpl.Default {
			return tpl, nil
		}
	}
	for _, tpl := range list {
		if tpl.Active {
			return tpl, nil
		}
	}
	return Template{}, ErrNotFound
}

func (e *Engine) deliver(ctx context.Context, rec *Record) {
	if e.d.Sender == nil {
		rec.State, rec.Reason = StateFailed, ReasonNoSender
		return
	}
	msg := rec.Message()
	if e.d.Outbound != nil && e.d.Outbound.Seen(ctx, dedup.ContentKey(rec.Phone, msg), e.d.OutboundTTL) {
		rec.State, rec.Reason = StateFailed, ReasonDuplicate
		return
	}
	res := e.d.Sender.Send(ctx, rec.Phone, msg)
	rec.Delivery = &res
	if res.Sent {
		rec.State, rec.Reason = StateSent, ""
		return
	}
	rec.State, rec.Reason = StateFailed, res.Reason
	if res.Classification != "" {
		rec.Reason = string(res.Classification)
	}
}

// store persists and publishes rec. Failures are logged; the record is
// returned either way.
func (e *Engine) store(ctx context.Context, rec Record, update bool) Record {
	rec.UpdatedAt = e.d.Now().UTC()

	var err error
	if update {
		err = e.d.Records.Update(ctx, rec)
	} else {
		err = e.d.Records.Append(ctx, rec)
	}
	if err != nil {
		e.d.Log.Error("campaign record not stored", "id", rec.ID, "state", rec.State, "err", err)
	}

	env := events.NewEnvelope(RecordEventType, rec).WithCorrelation(logger.RequestID(ctx))
	if err := e.d.Publisher.Publish(ctx, RecordEventType, env); err != nil {
		e.d.Log.Warn("campaign record not published", "id", rec.ID, "err", err)
	}

	metrics.CampaignRecords.WithLabelValues(string(rec.Type), string(rec.State), rec.Reason).Inc()
	e.d.Log.Info("campaign record",
		"id", rec.ID,
		"type", rec.Type,
		"state", rec.State,
		"reason", rec.Reason,
		"phone", logger.MaskPhone(rec.Phone),
	)
	return rec
}
