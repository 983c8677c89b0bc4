package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"chat-pipeline/internal/metrics"
)

// Config is the gateway connection the adapter probes.
type Config struct {
	Enabled    bool
	BaseURL    string
	APIKey     string
	InstanceID string
	SendPath   string
}

// Classification explains why every variant failed.
type Classification string

const (
	Unauthorized     Classification = "Unauthorized"
	EndpointNotFound Classification = "EndpointNotFound"
	ServerError      Classification = "ServerError"
	InvalidNumber    Classification = "InvalidNumber"
	InstanceOffline  Classification = "InstanceOffline"
	Unknown          Classification = "Unknown"
)

const (
	ReasonDisabled      = "disabled"
	ReasonMissingConfig = "missing_config"
	ReasonEmpty         = "empty_message"
	ReasonRateLimited   = "rate_limited"
	ReasonExhausted     = "all_variants_failed"
)

const bodyExcerpt = 512

// AttemptRecord is one probe. URL has the API key redacted.
type AttemptRecord struct {
	Variant  string        `json:"variant"`
	URL      string        `json:"url"`
	Status   int           `json:"status"`
	Body     string        `json:"body,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

func (a AttemptRecord) ok() bool { return a.Err == "" && a.Status >= 200 && a.Status < 300 }

// DeliveryResult is returned for every send, successful or not.
type DeliveryResult struct {
	Sent           bool            `json:"sent"`
	Variant        string          `json:"variant,omitempty"`
	Classification Classification  `json:"classification,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Attempts       []AttemptRecord `json:"attempts,omitempty"`
}

// Adapter delivers text by probing variants in order. It keeps no memory of
// which variant worked last time.
type Adapter struct {
	cfg       Config
	variants  []Variant
	transport Transport
	limiter   *rate.Limiter
	log       *slog.Logger
}

// NewAdapter builds an adapter over DefaultVariants(cfg). limiter may be nil.
func NewAdapter(cfg Config, t Transport, limiter *rate.Limiter, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		cfg:       cfg,
		variants:  DefaultVariants(cfg),
		transport: t,
		limiter:   limiter,
		log:       log,
	}
}

// Variants returns a copy of the probing order.
func (a *Adapter) Variants() []Variant {
	return append([]Variant(nil), a.variants...)
}

func (a *Adapter) Send(ctx context.Context, phone, text string) DeliveryResult {
	if !a.cfg.Enabled {
		return DeliveryResult{Reason: ReasonDisabled}
	}
	if a.cfg.BaseURL == "" || a.cfg.APIKey == "" || a.cfg.SendPath == "" || a.transport == nil {
		return DeliveryResult{Reason: ReasonMissingConfig}
	}
	text = NormalizeText(text)
	if phone == "" || text == "" {
		return DeliveryResult{Reason: ReasonEmpty}
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return DeliveryResult{Reason: ReasonRateLimited}
		}
	}

	start := time.Now()
	winner, attempts := attemptAll(ctx, a.variants, a.transport, func(v Variant) Request {
		return buildRequest(a.cfg, v, phone, text)
	})
	for i := range attempts {
		attempts[i].URL = redact(attempts[i].URL, a.cfg.APIKey)
	}

	res := DeliveryResult{Attempts: attempts}
	if winner != nil {
		res.Sent = true
		res.Variant = winner.ID
	} else {
		res.Classification = classify(attempts)
		res.Reason = ReasonExhausted
		a.log.Warn("gateway send failed",
			"classification", res.Classification,
			"attempts", len(attempts),
		)
	}
	metrics.GatewaySendLatency.WithLabelValues(classificationLabel(res)).Observe(time.Since(start).Seconds())
	return res
}

// attemptAll tries variants strictly in order and stops at the first 2xx.
// It returns the winning variant (nil if none) and every attempt made.
func attemptAll(ctx context.Context, variants []Variant, t Transport, build func(Variant) Request) (*Variant, []AttemptRecord) {
	attempts := make([]AttemptRecord, 0, len(variants))
	for i := range variants {
		if ctx.Err() != nil {
			break
		}
		v := variants[i]
		req := build(v)

		began := time.Now()
		resp := t.Do(ctx, req)
		rec := AttemptRecord{
			Variant:  v.ID,
			URL:      req.URL,
			Status:   resp.Status,
			Body:     excerpt(resp.Body),
			Duration: time.Since(began),
		}
		if resp.Err != nil {
			rec.Err = resp.Err.Error()
		}
		attempts = append(attempts, rec)
		metrics.GatewayAttempts.WithLabelValues(v.ID, attemptOutcome(rec)).Inc()

		if rec.ok() {
			return &variants[i], attempts
		}
	}
	return nil, attempts
}

var (
	invalidNumberPhrases = []string{
		"invalid number", "invalid phone", "número inválido", "numero invalido",
		"not a valid", "does not exist", "doesn't exist", "nonexistent", "not exist",
		"not on whatsapp", `"exists":false`,
	}
	offlinePhrases = []string{
		"offline", "disconnected", "not connected", "connection closed",
		`"state":"close"`, `"status":"close"`, "instance closed",
	}
)

// classify reduces failed attempts to one Classification. HTTP status wins over
// body text; among statuses 401 outranks 404, which outranks 5xx.
func classify(attempts []AttemptRecord) Classification {
	var has401, has404, has5xx bool
	for _, a := range attempts {
		switch {
		case a.Status == http.StatusUnauthorized:
			has401 = true
		case a.Status == http.StatusNotFound:
			has404 = true
		case a.Status >= 500:
			has5xx = true
		}
	}
	switch {
	case has401:
		return Unauthorized
	case has404:
		return EndpointNotFound
	case has5xx:
		return ServerError
	}

	for _, a := range attempts {
		if mentions(a.Body, invalidNumberPhrases) {
			return InvalidNumber
		}
	}
	for _, a := range attempts {
		if mentions(a.Body, offlinePhrases) {
			return InstanceOffline
		}
	}
	return Unknown
}

// mentions matches phrases case-insensitively; JSON fragments also match with
// the whitespace removed.
func mentions(body string, phrases []string) bool {
	if body == "" {
		return false
	}
	lower := strings.ToLower(body)
	compact := strings.Join(strings.Fields(lower), "")
	for _, p := range phrases {
		if strings.Contains(lower, p) || strings.Contains(compact, strings.ReplaceAll(p, " ", "")) {
			return true
		}
	}
	return false
}

// InstanceState is the gateway's own view of the connected instance.
type InstanceState struct {
	Instance string `json:"instance"`
	State    string `json:"state"`
	Status   int    `json:"status"`
	Error    string `json:"error,omitempty"`
}

// State probes the connection-state endpoint. It never returns a Go error;
// failures are reported in the Error field.
func (a *Adapter) State(ctx context.Context) InstanceState {
	out := InstanceState{Instance: a.cfg.InstanceID}
	if !a.cfg.Enabled {
		out.Error = ReasonDisabled
		return out
	}
	if a.cfg.BaseURL == "" || a.cfg.APIKey == "" || a.cfg.InstanceID == "" || a.transport == nil {
		out.Error = ReasonMissingConfig
		return out
	}

	h := http.Header{}
	h.Set("apikey", a.cfg.APIKey)
	h.Set("Accept", "application/json")
	resp := a.transport.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    strings.TrimRight(a.cfg.BaseURL, "/") + "/instance/connectionState/" + url.PathEscape(a.cfg.InstanceID),
		Header: h,
	})
	out.Status = resp.Status
	if resp.Err != nil {
		out.Error = resp.Err.Error()
		return out
	}

	var body struct {
		State    string `json:"state"`
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		out.Error = "unreadable_state"
		return out
	}
	out.State = body.Instance.State
	if out.State == "" {
		out.State = body.State
	}
	return out
}

// excerpt cuts s to at most bodyExcerpt bytes without splitting a rune.
func excerpt(s string) string {
	if len(s) <= bodyExcerpt {
		return s
	}
	cut := bodyExcerpt
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func attemptOutcome(a AttemptRecord) string {
	switch {
	case a.Err != "":
		return "transport_error"
	case a.ok():
		return "ok"
	default:
		return "http_error"
	}
}

func classificationLabel(r DeliveryResult) string {
	if r.Sent {
		return "sent"
	}
	return string(r.Classification)
}
