// Package agents produces the reply for a routed message. Each topic has a
// handler that asks the text generator first and falls back to fixed copy.
package agents

import (
	"context"
	"log/slog"
	"strings"

	"chat-pipeline/internal/keywords"
	"chat-pipeline/internal/leads"
	"chat-pipeline/internal/textgen"
)

// Action tags a handler can attach to its reply. Only some of them map to
// campaign types; the rest are informational.
const (
	ActionQualifyLead      = "[ACTION:QUALIFY_LEAD]"
	ActionOrder            = "[ACTION:CREATE_OR_UPDATE_ORDER]"
	ActionEventExpress     = "[ACTION:EVENT_EXPRESS]"
	ActionEventPlanning    = "[ACTION:EVENT_PLANNING]"
	ActionB2BCampaign      = "[ACTION:B2B_CAMPAIGN]"
	ActionB2BPresentation  = "[ACTION:B2B_PRESENTATION]"
	ActionPremiumCustomer  = "[ACTION:PREMIUM_CUSTOMER]"
	ActionWelcome          = "[ACTION:WELCOME]"
	ActionNewsletterOffers = "[ACTION:NEWSLETTER_OFFERS]"
	ActionContextualOffers = "[ACTION:CONTEXTUAL_OFFERS]"

	ActionSendCatalog   = "[ACTION:SEND_CATALOG]"
	ActionUpdateAddress = "[ACTION:UPDATE_ADDRESS]"
	ActionStartReturn   = "[ACTION:START_RETURN]"
)

type Request struct {
	Topic        keywords.Topic
	Message      string
	CustomerName string
	Insight      *leads.Insight
}

type Reply struct {
	Text          string `json:"text"`
	Action        string `json:"action,omitempty"`
	FromGenerator bool   `json:"from_generator"`
}

type Handler interface {
	Respond(ctx context.Context, req Request) Reply
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) Reply

func (f HandlerFunc) Respond(ctx context.Context, req Request) Reply { return f(ctx, req) }

// Dispatcher selects the handler for a topic. Unknown topics go to Support.
type Dispatcher struct {
	handlers map[keywords.Topic]Handler
	log      *slog.Logger
}

// Deps are the collaborators shared by the built-in handlers.
type Deps struct {
	Generator   textgen.Generator
	Catalog     CatalogSource
	CompanyName string
	Log         *slog.Logger
}

func NewDispatcher(d Deps) *Dispatcher {
	if d.Generator == nil {
		d.Generator = textgen.Disabled{}
	}
	if d.Catalog == nil {
		d.Catalog = NoCatalog{}
	}
	if d.CompanyName == "" {
		d.CompanyName = "3A Frios"
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Dispatcher{
		handlers: map[keywords.Topic]Handler{
			keywords.TopicCatalog:       &catalogHandler{deps: d},
			keywords.TopicOrders:        &ordersHandler{deps: d},
			keywords.TopicSupport:       &supportHandler{deps: d},
			keywords.TopicQualification: &qualificationHandler{},
			keywords.TopicMarketing:     &marketingHandler{deps: d},
		},
		log: d.Log,
	}
}

// Register replaces the handler for topic.
func (d *Dispatcher) Register(topic keywords.Topic, h Handler) {
	d.handlers[topic] = h
}

func (d *Dispatcher) Respond(ctx context.Context, req Request) (out Reply) {
	h, ok := d.handlers[req.Topic]
	if !ok {
		h = d.handlers[keywords.TopicSupport]
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panic", "topic", req.Topic, "panic", r)
			out = Reply{Text: supportDefault}
		}
	}()
	return h.Respond(ctx, req)
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func containsAny(text string, terms ...string) bool {
	return keywords.Any(text, terms)
}
