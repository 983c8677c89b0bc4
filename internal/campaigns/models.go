package campaigns

import (
	"errors"
	"time"

	"chat-pipeline/internal/gateway"
	"chat-pipeline/internal/leads"
)

var (
	ErrNotFound        = errors.New("campaigns: not found")
	ErrInvalidArgument = errors.New("campaigns: invalid argument")
	ErrConflict        = errors.New("campaigns: conflict")
)

// Type is a campaign type. Templates and settings are keyed by it.
type Type string

const (
	TypeQualifiedLead        Type = "qualified_lead"
	TypeProductPromotion     Type = "product_promotion"
	TypeOrderFollowUp        Type = "order_follow_up"
	TypeCustomerReactivation Type = "customer_reactivation"
	TypeCrossSell            Type = "cross_sell"
	TypePostSaleFeedback     Type = "post_sale_feedback"
	TypePersonalizedOffer    Type = "personalized_offer"
	TypeSpecialEvent         Type = "special_event"
)

// TypeInfo describes a campaign type for operators.
type TypeInfo struct {
	Value       Type   `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var Types = []TypeInfo{
	{TypeQualifiedLead, "Lead qualificado", "Cliente demonstrou interesse e está qualificado"},
	{TypeProductPromotion, "Promoção de produtos", "Ofertas e promoções de produtos específicos"},
	{TypeOrderFollowUp, "Follow-up de pedido", "Acompanhamento de carrinho abandonado ou pedido pendente"},
	{TypeCustomerReactivation, "Reativação de cliente", "Reconquista de clientes inativos"},
	{TypeCrossSell, "Cross-sell", "Venda de produtos complementares"},
	{TypePostSaleFeedback, "Feedback pós-venda", "Coleta de feedback após entrega"},
	{TypePersonalizedOffer, "Oferta personalizada", "Ofertas baseadas no perfil do cliente"},
	{TypeSpecialEvent, "Evento especial", "Produtos para eventos e comemorações"},
}

func (t Type) Valid() bool {
	for _, i := range Types {
		if i.Value == t {
			return true
		}
	}
	return false
}

type State string

const (
	StatePending    State = "Pending"
	StateEligible   State = "Eligible"
	StateIneligible State = "Ineligible"
	StateSent       State = "Sent"
	StateScheduled  State = "Scheduled"
	StateFailed     State = "Failed"
)

// Reasons recorded on records. Eligibility reasons come first; the first
// failing rule is the one recorded.
const (
	ReasonAutomationDisabled = "automation_disabled"
	ReasonTypeDisabled       = "campaign_type_disabled"
	ReasonRepeatWindow       = "repeat_within_24h"
	ReasonDailyLimit         = "daily_limit_reached"
	ReasonScoreFloor         = "score_below_floor"

	ReasonNoTemplate        = "no_template"
	ReasonDelayed           = "delayed"
	ReasonOutsideSendWindow = "outside_send_window"
	ReasonDuplicate         = "duplicate_suppressed"
	ReasonDryRun            = "dry_run"
	ReasonNoSender          = "no_sender"
)

// Record is the unit analytics consumers read. It is stored for every
// terminal state and again when a scheduled record is promoted.
type Record struct {
	ID          string                  `json:"id"`
	Type        Type                    `json:"type"`
	Phone       string                  `json:"phone"`
	Action      string                  `json:"action,omitempty"`
	TemplateID  string                  `json:"template_id,omitempty"`
	Variables   map[string]string       `json:"variables,omitempty"`
	Title       string                  `json:"title,omitempty"`
	Content     string                  `json:"content,omitempty"`
	State       State                   `json:"state"`
	Reason      string                  `json:"reason,omitempty"`
	Insight     *leads.Insight          `json:"insight,omitempty"`
	Delivery    *gateway.DeliveryResult `json:"delivery,omitempty"`
	DryRun      bool                    `json:"dry_run,omitempty"`
	ScheduledAt *time.Time              `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// counts reports whether r occupies a slot for eligibility rules.
func (r Record) counts() bool {
	return !r.DryRun && (r.State == StateSent || r.State == StateScheduled)
}

// Message is the text handed to the gateway.
func (r Record) Message() string {
	if r.Title == "" {
		return r.Content
	}
	return r.Title + "\n\n" + r.Content
}

type Template struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Variables   []string  `json:"variables,omitempty"`
	Active      bool      `json:"active"`
	Default     bool      `json:"default"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (t Template) validate() error {
	if !t.Type.Valid() || t.Name == "" || t.Body == "" {
		return ErrInvalidArgument
	}
	return nil
}

type TypeSettings struct {
	Enabled      bool   `json:"enabled"`
	TemplateID   string `json:"template_id,omitempty"`
	DelayMinutes int    `json:"delay_minutes"`
	ScoreFloor   int    `json:"score_floor"`
}

// SendWindow is a daily "HH:MM" interval in the business timezone. A zero
// window means any time. End before Start spans midnight.
type SendWindow struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type Settings struct {
	AutomationEnabled bool                  `json:"automation_enabled"`
	MaxPerPhonePerDay int                   `json:"max_per_phone_per_day"`
	RepeatWindowHours int                   `json:"repeat_window_hours"`
	SendWindow        SendWindow            `json:"send_window"`
	Types             map[Type]TypeSettings `json:"types"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

const (
	defaultMaxPerDay   = 3
	defaultRepeatHours = 24
	qualifiedLeadFloor = 5
)

// DefaultSettings has automation off; an operator turns it on.
func DefaultSettings() Settings {
	s := Settings{
		MaxPerPhonePerDay: defaultMaxPerDay,
		RepeatWindowHours: defaultRepeatHours,
		Types:             map[Type]TypeSettings{},
	}
	for _, ti := range Types {
		s.Types[ti.Value] = TypeSettings{Enabled: true}
	}
	s.Types[TypeQualifiedLead] = TypeSettings{Enabled: true, ScoreFloor: qualifiedLeadFloor}
	return s
}

func (s Settings) withDefaults() Settings {
	if s.MaxPerPhonePerDay <= 0 {
		s.MaxPerPhonePerDay = defaultMaxPerDay
	}
	if s.RepeatWindowHours <= 0 {
		s.RepeatWindowHours = defaultRepeatHours
	}
	// Types missing from a partial document keep their defaults; a sent
	// entry replaces the default for that type.
	types := make(map[Type]TypeSettings, len(Types))
	for t, ts := range DefaultSettings().Types {
		types[t] = ts
	}
	for t, ts := range s.Types {
		types[t] = ts
	}
	if ql := types[TypeQualifiedLead]; ql.ScoreFloor < qualifiedLeadFloor {
		ql.ScoreFloor = qualifiedLeadFloor
		types[TypeQualifiedLead] = ql
	}
	s.Types = types
	return s
}

func (s Settings) validate() error {
	for t, ts := range s.Types {
		if !t.Valid() || ts.DelayMinutes < 0 || ts.ScoreFloor < 0 || ts.ScoreFloor > 10 {
			return ErrInvalidArgument
		}
	}
	if s.MaxPerPhonePerDay < 0 || s.RepeatWindowHours < 0 {
		return ErrInvalidArgument
	}
	if _, _, err := s.SendWindow.bounds(); err != nil {
		return ErrInvalidArgument
	}
	return nil
}

// Filter selects records for history listings. Zero fields match everything.
type Filter struct {
	Type   Type
	Phone  string
	State  State
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f Filter) match(r Record) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Phone != "" && r.Phone != f.Phone {
		return false
	}
	if f.State != "" && r.State != f.State {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.CreatedAt.Before(f.To) {
		return false
	}
	return true
}
