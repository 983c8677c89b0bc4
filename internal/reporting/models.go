package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CampaignStatsRequest requests aggregated campaign outcomes. Type is optional.
type CampaignStatsRequest struct {
	Range TimeRange `json:"range"`
	Type  string    `json:"type,omitempty"`
}

type CampaignStats struct {
	Range TimeRange `json:"range"`
	Type  string    `json:"type,omitempty"`

	Total      int `json:"total"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Scheduled  int `json:"scheduled"`
	Ineligible int `json:"ineligible"`
	DryRuns    int `json:"dry_runs"`

	// SuccessRate is Sent / (Sent + Failed); zero when nothing was attempted.
	SuccessRate float64 `json:"success_rate"`

	ByType    map[string]TypeStats `json:"by_type"`
	Reasons   map[string]int       `json:"ineligible_reasons"`
	Failures  map[string]int       `json:"failure_reasons"`
	Truncated bool                 `json:"truncated,omitempty"`
}

type TypeStats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
