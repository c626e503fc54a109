package domain

// Sentiment is the overall polarity assigned to a review.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// Category is the topical area a review complains or raves about.
type Category string

const (
	CategoryLogistics Category = "Logistics"
	CategoryQuality   Category = "Quality"
	CategorySupport   Category = "Support"
	CategoryPrice     Category = "Price"
	CategoryOther     Category = "Other"
	CategoryUnknown   Category = "Unknown"
)

// Urgency indicates how fast the business should react to a review.
type Urgency string

const (
	UrgencyHigh   Urgency = "High"
	UrgencyMedium Urgency = "Medium"
	UrgencyLow    Urgency = "Low"
)

// ClassificationSource indicates which engine produced the draft classification.
type ClassificationSource string

const (
	SourceRemote  ClassificationSource = "remote"  // remote LLM classifier
	SourceRules   ClassificationSource = "rules"   // lexical rule engine
	SourceDefault ClassificationSource = "default" // degenerate-input default
)

// ValidSentiment reports whether s is one of the three known sentiments.
func ValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryLogistics, CategoryQuality, CategorySupport,
		CategoryPrice, CategoryOther, CategoryUnknown:
		return true
	}
	return false
}

// ValidUrgency reports whether u is a known urgency level.
func ValidUrgency(u Urgency) bool {
	switch u {
	case UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}

// ReviewInput is a single review row handed in by the ingestion collaborator.
// Score is the ground-truth 1..5 rating when present.
type ReviewInput struct {
	Text  string `json:"text"`
	Score *int   `json:"score,omitempty"`
}

// Classification is the triage verdict for one review. Values are produced
// fresh per input; sanity-layer corrections derive a new value rather than
// mutating a shared one.
type Classification struct {
	Sentiment       Sentiment            `json:"sentiment"`
	Category        Category             `json:"category"`
	Urgency         Urgency              `json:"urgency"`
	SuggestedAction string               `json:"suggested_action"`
	ReasoningTrace  []string             `json:"reasoning_trace,omitempty"`
	Source          ClassificationSource `json:"source,omitempty"`
}

// Clone returns a deep copy so corrections never alias the draft's trace.
func (c Classification) Clone() Classification {
	out := c
	if len(c.ReasoningTrace) > 0 {
		out.ReasoningTrace = make([]string, len(c.ReasoningTrace))
		copy(out.ReasoningTrace, c.ReasoningTrace)
	}
	return out
}

// BatchJob is an ordered set of reviews plus the concurrency degree for one
// triage run. It is consumed exactly once by the batch orchestrator.
type BatchJob struct {
	Inputs      []ReviewInput
	WorkerCount int
}

// IntPtr is a convenience for building optional scores.
func IntPtr(v int) *int { return &v }
