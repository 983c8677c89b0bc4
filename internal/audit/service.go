package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only;
// there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Service records operator actions. Callers should treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

const (
	defaultRecent = 50
	maxRecent     = 500
)

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.ActorID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if limit <= 0 {
		limit = defaultRecent
	}
	if limit > maxRecent {
		limit = maxRecent
	}
	return s.repo.Recent(ctx, limit)
}

func (s *Service) LogManualReply(ctx context.Context, a Actor, phone, text string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeManualReply,
		ActorID:   a.ID,
		ActorRole: a.Role,
		IPAddress: a.IP,
		Phone:     phone,
		Message:   text,
	})
}

func (s *Service) LogSettingsUpdated(ctx context.Context, a Actor, metadata string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeSettingsUpdated,
		ActorID:   a.ID,
		ActorRole: a.Role,
		IPAddress: a.IP,
		Message:   "campaign settings updated",
		Metadata:  metadata,
	})
}

func (s *Service) LogTemplateSaved(ctx context.Context, a Actor, campaignType, templateID string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeTemplateSaved,
		ActorID:      a.ID,
		ActorRole:    a.Role,
		IPAddress:    a.IP,
		CampaignType: campaignType,
		TemplateID:   templateID,
		Message:      "template saved",
	})
}

func (s *Service) LogTemplateDeleted(ctx context.Context, a Actor, templateID string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeTemplateDeleted,
		ActorID:    a.ID,
		ActorRole:  a.Role,
		IPAddress:  a.IP,
		TemplateID: templateID,
		Message:    "template deleted",
	})
}

// LogCampaignTest records a rule-bypassing test send.
func (s *Service) LogCampaignTest(ctx context.Context, a Actor, phone, campaignType, templateID string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeCampaignTest,
		ActorID:      a.ID,
		ActorRole:    a.Role,
		IPAddress:    a.IP,
		Phone:        phone,
		CampaignType: campaignType,
		TemplateID:   templateID,
		Message:      "campaign test sent",
	})
}
