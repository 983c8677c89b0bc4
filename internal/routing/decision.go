package routing

import "chat-pipeline/internal/keywords"

// Decision is the router's output for one message.
//
// Heuristic confidences are multiples of 0.25; a classifier may return any
// value in [0,1]. Reason names the rule that produced the decision and is
// intended for logs and metrics only.
type Decision struct {
	Topic           keywords.Topic `json:"topic"`
	Confidence      float64        `json:"confidence"`
	MatchedTerms    []string       `json:"matched_terms,omitempty"`
	Source          Source         `json:"source"`
	KeywordsVersion string         `json:"keywords_version"`

	Reason string `json:"reason,omitempty"`
}

type Source string

const (
	SourceHeuristic          Source = "Heuristic"
	SourceHistoryBias        Source = "HistoryBias"
	SourceFallbackClassifier Source = "FallbackClassifier"
	SourceOverride           Source = "Override"
)
