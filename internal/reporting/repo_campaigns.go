package reporting

import (
	"context"
	"time"

	"chat-pipeline/internal/campaigns"
)

const (
	pageSize = 500
	maxPages = 40
)

// CampaignSource adapts a campaigns.Repository by paging through List.
// It stops after maxPages pages and reports the result as truncated.
type CampaignSource struct {
	Records campaigns.Repository
}

func (s CampaignSource) ListCampaignRecords(ctx context.Context, from, to time.Time, typ string) ([]campaigns.Record, bool, error) {
	f := campaigns.Filter{Type: campaigns.Type(typ), From: from, To: to, Limit: pageSize}
	var out []campaigns.Record
	for page := 0; page < maxPages; page++ {
		f.Offset = page * pageSize
		recs, total, err := s.Records.List(ctx, f)
		if err != nil {
			return nil, false, err
		}
		out = append(out, recs...)
		if len(recs) < pageSize || f.Offset+len(recs) >= total {
			return out, false, nil
		}
	}
	return out, true, nil
}
