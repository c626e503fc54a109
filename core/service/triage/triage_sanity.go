package triage

import (
	"strings"

	"triage_server/core/domain"
)

// =============================================================================
// Sanity Layer (ground-truth reconciliation)
// =============================================================================

// Audit notes appended to the reasoning trace when a rule fires.
const (
	noteScoreAdjustment = "[AUTO-CORRECT: Integrated Score Adjustment]"
	noteCriticalScore   = "[FORCE: Critical Score]"
	noteMaxScore        = "[FORCE: Max Score]"
	noteUrgencyUpgrade  = "[ESCALATE: Negative Sentiment]"
	noteUrgencyTrigger  = "[ESCALATE: High-Urgency Trigger]"
	notePositiveLexicon = "[OVERRIDE: Positive Lexicon]"
)

const (
	actionImmediateResolution = "Immediate resolution / refund"
	actionReception           = "Reception + Resolution"
	actionThankAndRetain      = "Thank and retain"
)

// Sanity triggers match the raw lowercased text, so accented and plain
// spellings are both listed.
var (
	highUrgencyTriggers = []string{
		"atraso", "não recebi", "nao recebi", "extraviado", "quebrado",
		"defeito", "procon", "justiça", "justica",
		"triste", "decepcionado", "chateado", "nunca mais",
		"indignado", "vergonha", "absurdo", "lixo",
	}

	// Subset of the high-urgency triggers that signal emotional distress and
	// call for reception rather than a plain refund.
	emotionTriggers = []string{"triste", "decepcionado"}

	positiveLexicon = []string{
		"parabéns", "parabens", "excelente", "perfeito", "amei",
		"recomendo", "ótimo", "otimo", "maravilhoso",
	}
)

// Reconcile corrects a draft classification against the ground-truth score.
// It is pure, deterministic, and idempotent: each rule mutates only when it
// would change state, and only then appends its audit note. With no score it
// returns the draft unchanged.
func Reconcile(draft domain.Classification, score *int, text string) domain.Classification {
	if score == nil {
		return draft
	}

	c := draft.Clone()
	lower := strings.ToLower(text)
	note := func(n string) { c.ReasoningTrace = append(c.ReasoningTrace, n) }

	// 1. Neutral resolution: the score breaks the tie.
	if c.Sentiment == domain.SentimentNeutral {
		switch {
		case *score <= 3:
			c.Sentiment = domain.SentimentNegative
			c.Category = domain.CategoryQuality
			note(noteScoreAdjustment)
		case *score >= 4:
			c.Sentiment = domain.SentimentPositive
			note(noteScoreAdjustment)
		}
	}

	// 2. Score polarity enforcement.
	if *score <= 2 && c.Sentiment != domain.SentimentNegative {
		c.Sentiment = domain.SentimentNegative
		note(noteCriticalScore)
	} else if *score == 5 && c.Sentiment != domain.SentimentPositive {
		c.Sentiment = domain.SentimentPositive
		note(noteMaxScore)
	}

	// 3. Urgency matrix: negative reviews never stay Low, and trigger words
	// escalate to High.
	if c.Sentiment == domain.SentimentNegative {
		if c.Urgency == domain.UrgencyLow {
			c.Urgency = domain.UrgencyMedium
			note(noteUrgencyUpgrade)
		}

		if containsAny(lower, highUrgencyTriggers) {
			action := actionImmediateResolution
			if containsAny(lower, emotionTriggers) {
				action = actionReception
			}
			if c.Urgency != domain.UrgencyHigh || c.SuggestedAction != action {
				c.Urgency = domain.UrgencyHigh
				c.SuggestedAction = action
				note(noteUrgencyTrigger)
			}
		}
	}

	// 4. Positive lexicon override for clearly satisfied customers.
	if *score >= 4 && containsAny(lower, positiveLexicon) {
		changed := c.Sentiment != domain.SentimentPositive ||
			c.Category == domain.CategoryUnknown ||
			c.SuggestedAction != actionThankAndRetain
		if changed {
			c.Sentiment = domain.SentimentPositive
			if c.Category == domain.CategoryUnknown {
				c.Category = domain.CategoryOther
			}
			c.SuggestedAction = actionThankAndRetain
			note(notePositiveLexicon)
		}
	}

	return c
}
