package leads

type Segment string

const (
	SegmentIndividual   Segment = "Individual"
	SegmentBusiness     Segment = "Business"
	SegmentSpecialEvent Segment = "SpecialEvent"
)

type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

type Qualification string

const (
	Cold Qualification = "Cold"
	Warm Qualification = "Warm"
	Hot  Qualification = "Hot"
)

// Insight is a derived, read-only lead signal. A nil *Insight means no signal.
type Insight struct {
	Score         int           `json:"score"`
	Segment       Segment       `json:"segment"`
	Urgency       Urgency       `json:"urgency"`
	Headcount     *int          `json:"headcount,omitempty"`
	Qualification Qualification `json:"qualification"`

	// BusinessType is a copy label such as "restaurante"; empty for individuals.
	BusinessType    string `json:"business_type,omitempty"`
	KeywordsVersion string `json:"keywords_version"`
}

// ScoreOf returns the score, treating a nil insight as zero.
func (i *Insight) ScoreOf() int {
	if i == nil {
		return 0
	}
	return i.Score
}
