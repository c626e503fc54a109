// Package triage implements the review triage core: the lexical rule engine,
// the score-sanity layer, the single-item classifier, and the ordered batch
// orchestrator.
package triage

import (
	"strings"
	"unicode"

	"triage_server/core/domain"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// Rule Engine (offline fallback)
// =============================================================================

// Trigger groups are checked most specific first; the first match wins.
// Lexicons are PT-BR (the review corpus language), matched after lowering and
// diacritic stripping so "Não" and "nao" hit the same trigger.
var (
	negativeRecommendation = []string{"nao recomendo", "nao indico"}

	criticalTriggers = []string{
		"processo", "procon", "justica", "advogado",
		"nunca mais", "lixo", "golpe", "roubo",
	}

	logisticsTriggers = []string{
		"atraso", "demorou", "nao chegou", "extraviado",
		"sumiu", "correios", "entrega",
	}

	generalNegative = []string{
		"ruim", "pessimo", "terrivel", "odiei", "triste", "insatisfeito",
	}

	generalPositive = []string{
		"bom", "otimo", "excelente", "amei", "gostei",
		"recomendo", "top", "show", "perfeito",
	}
)

// RuleEngine maps normalized review text to a baseline classification using
// ordered lexical trigger groups. It is pure and always available.
type RuleEngine struct{}

// NewRuleEngine creates the lexical fallback engine.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// Classify is a total function: every text maps to some classification.
func (e *RuleEngine) Classify(text string) domain.Classification {
	normalized := normalizeText(text)

	switch {
	case containsAny(normalized, negativeRecommendation):
		return ruleResult(domain.SentimentNegative, domain.CategoryQuality, domain.UrgencyMedium, "Monitor")

	case containsAny(normalized, criticalTriggers):
		return ruleResult(domain.SentimentNegative, domain.CategoryOther, domain.UrgencyHigh, "Retain customer immediately")

	case containsAny(normalized, logisticsTriggers):
		return ruleResult(domain.SentimentNegative, domain.CategoryLogistics, domain.UrgencyHigh, "Check tracking")

	case containsAny(normalized, generalNegative):
		return ruleResult(domain.SentimentNegative, domain.CategoryQuality, domain.UrgencyMedium, "Offer coupon/exchange")

	case containsAny(normalized, generalPositive):
		return ruleResult(domain.SentimentPositive, domain.CategoryQuality, domain.UrgencyLow, "Thank for review")

	default:
		return ruleResult(domain.SentimentNeutral, domain.CategoryOther, domain.UrgencyLow, "Monitor")
	}
}

func ruleResult(s domain.Sentiment, c domain.Category, u domain.Urgency, action string) domain.Classification {
	return domain.Classification{
		Sentiment:       s,
		Category:        c,
		Urgency:         u,
		SuggestedAction: action,
		Source:          domain.SourceRules,
	}
}

// normalizeText lowercases and strips combining marks (NFD decompose, drop
// Mn runes, recompose).
func normalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return normalized
}

func containsAny(s string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
