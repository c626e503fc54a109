// Package report builds enriched rows and aggregate summaries from
// classified review batches.
package report

import (
	"fmt"

	"triage_server/core/domain"
)

// EnrichedReview pairs a source review with its classification.
type EnrichedReview struct {
	Text            string                      `json:"text"`
	Score           *int                        `json:"score,omitempty"`
	Sentiment       domain.Sentiment            `json:"sentiment"`
	Category        domain.Category             `json:"category"`
	Urgency         domain.Urgency              `json:"urgency"`
	SuggestedAction string                      `json:"suggested_action"`
	ReasoningTrace  []string                    `json:"reasoning_trace,omitempty"`
	Source          domain.ClassificationSource `json:"source"`
}

// Enrich zips inputs with their classifications positionally. Both slices
// must have the same length.
func Enrich(inputs []domain.ReviewInput, results []domain.Classification) ([]EnrichedReview, error) {
	if len(inputs) != len(results) {
		return nil, fmt.Errorf("input/result length mismatch: %d inputs, %d results", len(inputs), len(results))
	}

	enriched := make([]EnrichedReview, len(inputs))
	for i, in := range inputs {
		r := results[i]
		enriched[i] = EnrichedReview{
			Text:            in.Text,
			Score:           in.Score,
			Sentiment:       r.Sentiment,
			Category:        r.Category,
			Urgency:         r.Urgency,
			SuggestedAction: r.SuggestedAction,
			ReasoningTrace:  r.ReasoningTrace,
			Source:          r.Source,
		}
	}
	return enriched, nil
}

// Summary aggregates a classified batch for dashboards.
type Summary struct {
	Total               int                                 `json:"total"`
	BySentiment         map[domain.Sentiment]int            `json:"by_sentiment"`
	ByUrgency           map[domain.Urgency]int              `json:"by_urgency"`
	ByCategory          map[domain.Category]int             `json:"by_category"`
	BySource            map[domain.ClassificationSource]int `json:"by_source"`
	NegativeHighUrgency int                                 `json:"negative_high_urgency"`
}

// Summarize computes distribution counts over a batch of classifications.
func Summarize(results []domain.Classification) Summary {
	s := Summary{
		Total:       len(results),
		BySentiment: make(map[domain.Sentiment]int),
		ByUrgency:   make(map[domain.Urgency]int),
		ByCategory:  make(map[domain.Category]int),
		BySource:    make(map[domain.ClassificationSource]int),
	}

	for _, r := range results {
		s.BySentiment[r.Sentiment]++
		s.ByUrgency[r.Urgency]++
		s.ByCategory[r.Category]++
		s.BySource[r.Source]++
		if r.Sentiment == domain.SentimentNegative && r.Urgency == domain.UrgencyHigh {
			s.NegativeHighUrgency++
		}
	}
	return s
}
