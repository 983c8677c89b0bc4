package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-pipeline/internal/campaigns"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts record access for reporting. truncated is true when
// the source stopped before returning every matching record.
type Repository interface {
	ListCampaignRecords(ctx context.Context, from, to time.Time, typ string) (recs []campaigns.Record, truncated bool, err error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CampaignStats(ctx context.Context, req CampaignStatsRequest) (CampaignStats, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CampaignStats{}, ErrInvalidRequest
	}
	if req.Type != "" && !campaigns.Type(req.Type).Valid() {
		return CampaignStats{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CampaignStats{}, errors.New("reporting: repository not configured")
	}

	rows, truncated, err := s.repo.ListCampaignRecords(ctx, req.Range.From, req.Range.To, req.Type)
	if err != nil {
		return CampaignStats{}, fmt.Errorf("reporting: list records: %w", err)
	}

	out := CampaignStats{
		Range:     req.Range,
		Type:      req.Type,
		ByType:    map[string]TypeStats{},
		Reasons:   map[string]int{},
		Failures:  map[string]int{},
		Truncated: truncated,
	}
	for _, r := range rows {
		out.Total++
		ts := out.ByType[string(r.Type)]
		ts.Total++

		switch {
		case r.DryRun:
			out.DryRuns++
		case r.State == campaigns.StateSent:
			out.Sent++
			ts.Sent++
		case r.State == campaigns.StateFailed:
			out.Failed++
			ts.Failed++
			out.Failures[r.Reason]++
		case r.State == campaigns.StateScheduled:
			out.Scheduled++
		case r.State == campaigns.StateIneligible:
			out.Ineligible++
			out.Reasons[r.Reason]++
		}
		out.ByType[string(r.Type)] = ts
	}
	if attempted := out.Sent + out.Failed; attempted > 0 {
		out.SuccessRate = float64(out.Sent) / float64(attempted)
	}
	return out, nil
}
