package triage

import (
	"reflect"
	"testing"

	"triage_server/core/domain"
)

// TestReconcileScoreCorrections tests the ordered correction rules against
// the ground-truth score.
func TestReconcileScoreCorrections(t *testing.T) {
	engine := NewRuleEngine()

	tests := []struct {
		name          string
		text          string
		score         int
		wantSentiment domain.Sentiment
		wantCategory  domain.Category
		wantUrgency   domain.Urgency
		wantAction    string
		wantNotes     []string
	}{
		{
			name:          "sarcastic positive forced negative by critical score",
			text:          "Gostei, mas veio quebrado.",
			score:         1,
			wantSentiment: domain.SentimentNegative,
			wantCategory:  domain.CategoryQuality,
			wantUrgency:   domain.UrgencyHigh,
			wantAction:    "Immediate resolution / refund",
			wantNotes:     []string{noteCriticalScore, noteUrgencyUpgrade, noteUrgencyTrigger},
		},
		{
			name:          "neutral resolved positive by high score",
			text:          "Chegou na semana passada",
			score:         5,
			wantSentiment: domain.SentimentPositive,
			wantCategory:  domain.CategoryOther,
			wantUrgency:   domain.UrgencyLow,
			wantAction:    "Monitor",
			wantNotes:     []string{noteScoreAdjustment},
		},
		{
			name:          "neutral resolved negative by low score",
			text:          "Chegou na semana passada",
			score:         2,
			wantSentiment: domain.SentimentNegative,
			wantCategory:  domain.CategoryQuality,
			wantUrgency:   domain.UrgencyMedium,
			wantAction:    "Monitor",
			wantNotes:     []string{noteScoreAdjustment, noteUrgencyUpgrade},
		},
		{
			name:          "negative text forced positive by max score",
			text:          "Achei muito ruim",
			score:         5,
			wantSentiment: domain.SentimentPositive,
			wantCategory:  domain.CategoryQuality,
			wantUrgency:   domain.UrgencyMedium,
			wantAction:    "Offer coupon/exchange",
			wantNotes:     []string{noteMaxScore},
		},
		{
			name:          "emotional distress gets reception action",
			text:          "Estou muito triste com a compra",
			score:         1,
			wantSentiment: domain.SentimentNegative,
			wantCategory:  domain.CategoryQuality,
			wantUrgency:   domain.UrgencyHigh,
			wantAction:    "Reception + Resolution",
			wantNotes:     []string{noteUrgencyTrigger},
		},
		{
			name:          "positive lexicon upgrades action on high score",
			text:          "Produto excelente, recomendo!",
			score:         5,
			wantSentiment: domain.SentimentPositive,
			wantCategory:  domain.CategoryQuality,
			wantUrgency:   domain.UrgencyLow,
			wantAction:    "Thank and retain",
			wantNotes:     []string{notePositiveLexicon},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := engine.Classify(tt.text)
			got := Reconcile(draft, domain.IntPtr(tt.score), tt.text)

			if got.Sentiment != tt.wantSentiment {
				t.Errorf("Sentiment = %v, want %v", got.Sentiment, tt.wantSentiment)
			}
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %v, want %v", got.Category, tt.wantCategory)
			}
			if got.Urgency != tt.wantUrgency {
				t.Errorf("Urgency = %v, want %v", got.Urgency, tt.wantUrgency)
			}
			if got.SuggestedAction != tt.wantAction {
				t.Errorf("SuggestedAction = %q, want %q", got.SuggestedAction, tt.wantAction)
			}
			if !reflect.DeepEqual(got.ReasoningTrace, tt.wantNotes) {
				t.Errorf("ReasoningTrace = %v, want %v", got.ReasoningTrace, tt.wantNotes)
			}
		})
	}
}

// TestReconcileNilScore verifies reviews without a rating pass through
// unchanged.
func TestReconcileNilScore(t *testing.T) {
	draft := domain.Classification{
		Sentiment:       domain.SentimentPositive,
		Category:        domain.CategoryQuality,
		Urgency:         domain.UrgencyLow,
		SuggestedAction: "Thank for review",
		Source:          domain.SourceRules,
	}

	got := Reconcile(draft, nil, "péssimo produto")
	if !reflect.DeepEqual(got, draft) {
		t.Errorf("Reconcile with nil score = %+v, want unchanged draft %+v", got, draft)
	}
}

// TestReconcileIdempotent verifies running the sanity layer twice is a no-op
// the second time.
func TestReconcileIdempotent(t *testing.T) {
	engine := NewRuleEngine()

	cases := []struct {
		text  string
		score int
	}{
		{"Gostei, mas veio quebrado.", 1},
		{"Chegou na semana passada", 5},
		{"Chegou na semana passada", 2},
		{"Estou muito triste com a compra", 1},
		{"Produto excelente, recomendo!", 5},
		{"Achei muito ruim", 5},
		{"Não recomendo a ninguém.", 1},
	}

	for _, tc := range cases {
		draft := engine.Classify(tc.text)
		once := Reconcile(draft, domain.IntPtr(tc.score), tc.text)
		twice := Reconcile(once, domain.IntPtr(tc.score), tc.text)

		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Reconcile(%q, %d) not idempotent:\n once: %+v\ntwice: %+v",
				tc.text, tc.score, once, twice)
		}
	}
}

// TestReconcileScorePolarity verifies the hard polarity bounds: scores of 1-2
// always end Negative, a score of 5 always ends Positive.
func TestReconcileScorePolarity(t *testing.T) {
	drafts := []domain.Classification{
		{Sentiment: domain.SentimentPositive, Category: domain.CategoryQuality, Urgency: domain.UrgencyLow, SuggestedAction: "Thank for review"},
		{Sentiment: domain.SentimentNeutral, Category: domain.CategoryOther, Urgency: domain.UrgencyLow, SuggestedAction: "Monitor"},
		{Sentiment: domain.SentimentNegative, Category: domain.CategoryLogistics, Urgency: domain.UrgencyHigh, SuggestedAction: "Check tracking"},
	}

	for _, draft := range drafts {
		for _, score := range []int{1, 2} {
			got := Reconcile(draft, domain.IntPtr(score), "texto qualquer")
			if got.Sentiment != domain.SentimentNegative {
				t.Errorf("score %d on draft %v: Sentiment = %v, want Negative", score, draft.Sentiment, got.Sentiment)
			}
		}

		got := Reconcile(draft, domain.IntPtr(5), "texto qualquer")
		if got.Sentiment != domain.SentimentPositive {
			t.Errorf("score 5 on draft %v: Sentiment = %v, want Positive", draft.Sentiment, got.Sentiment)
		}
	}
}

// TestReconcileUrgencyMonotonic verifies the sanity layer never lowers
// urgency.
func TestReconcileUrgencyMonotonic(t *testing.T) {
	rank := map[domain.Urgency]int{
		domain.UrgencyLow:    0,
		domain.UrgencyMedium: 1,
		domain.UrgencyHigh:   2,
	}

	sentiments := []domain.Sentiment{domain.SentimentPositive, domain.SentimentNegative, domain.SentimentNeutral}
	urgencies := []domain.Urgency{domain.UrgencyLow, domain.UrgencyMedium, domain.UrgencyHigh}
	texts := []string{"texto qualquer", "produto quebrado", "estou triste", "excelente compra"}

	for _, s := range sentiments {
		for _, u := range urgencies {
			for _, text := range texts {
				for score := 1; score <= 5; score++ {
					draft := domain.Classification{
						Sentiment: s, Category: domain.CategoryOther,
						Urgency: u, SuggestedAction: "Monitor",
					}
					got := Reconcile(draft, domain.IntPtr(score), text)
					if rank[got.Urgency] < rank[u] {
						t.Errorf("draft %v/%v score %d text %q: urgency lowered to %v",
							s, u, score, text, got.Urgency)
					}
				}
			}
		}
	}
}

// TestReconcileDoesNotMutateDraft verifies corrections never alias the
// draft's reasoning trace.
func TestReconcileDoesNotMutateDraft(t *testing.T) {
	draft := domain.Classification{
		Sentiment:       domain.SentimentNeutral,
		Category:        domain.CategoryOther,
		Urgency:         domain.UrgencyLow,
		SuggestedAction: "Monitor",
		ReasoningTrace:  []string{"existing"},
	}
	want := draft.Clone()

	Reconcile(draft, domain.IntPtr(1), "produto quebrado")

	if !reflect.DeepEqual(draft, want) {
		t.Errorf("draft mutated by Reconcile: %+v, want %+v", draft, want)
	}
}
