package leads

import (
	"log/slog"
	"strconv"
	"strings"

	"chat-pipeline/internal/conversations"
	"chat-pipeline/internal/keywords"
)

const (
	// WindowTurns is how many past customer messages join the current one.
	WindowTurns = 5

	maxScore = 10
	hotFrom  = 7
	warmFrom = 4
)

// Extractor derives insights from a keyword table.
type Extractor struct {
	Table *keywords.Table
	Log   *slog.Logger
}

func NewExtractor(table *keywords.Table, log *slog.Logger) *Extractor {
	if table == nil {
		table = keywords.Default()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{Table: table, Log: log}
}

// Extract is a pure function of message and the customer text of the first
// WindowTurns history entries (most recent first). It returns nil instead of
// failing.
func (e *Extractor) Extract(message string, history []conversations.Turn) (out *Insight) {
	defer func() {
		if r := recover(); r != nil {
			e.Log.Error("lead extraction panic", "panic", r)
			out = nil
		}
	}()

	parts := []string{message}
	recent := conversations.CustomerTexts(history)
	if len(recent) > WindowTurns {
		recent = recent[:WindowTurns]
	}
	parts = append(parts, recent...)
	text := strings.ToLower(strings.Join(parts, "\n"))

	t := e.Table
	in := &Insight{
		Segment:         SegmentIndividual,
		Urgency:         UrgencyLow,
		KeywordsVersion: t.Version,
	}

	switch {
	case keywords.Any(text, t.BusinessTokens):
		in.Segment = SegmentBusiness
		in.BusinessType = t.DetectBusinessType(text)
	case keywords.Any(text, t.EventTokens):
		in.Segment = SegmentSpecialEvent
		in.BusinessType = t.DetectBusinessType(text)
	}

	switch {
	case keywords.Any(text, t.UrgentTokens):
		in.Urgency = UrgencyHigh
	case keywords.Any(text, t.WeekTokens):
		in.Urgency = UrgencyMedium
	}

	if m := t.Headcount.FindStringSubmatch(text); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			in.Headcount = &n
		}
	}

	score := 0
	if keywords.Any(text, t.PurchaseVerbs) {
		score += 3
	}
	if keywords.Any(text, t.PriceQuestions) {
		score += 2
	}
	if keywords.Any(text, t.ProductTokens) || keywords.Any(text, t.CatalogRequests) {
		score++
	}
	if in.Urgency == UrgencyHigh {
		score += 2
	}
	if in.Segment == SegmentBusiness {
		score++
	}
	if in.Headcount != nil && *in.Headcount > 20 {
		score++
	}
	if score > maxScore {
		score = maxScore
	}
	in.Score = score
	in.Qualification = qualify(score)
	return in
}

func qualify(score int) Qualification {
	switch {
	case score >= hotFrom:
		return Hot
	case score >= warmFrom:
		return Warm
	default:
		return Cold
	}
}
