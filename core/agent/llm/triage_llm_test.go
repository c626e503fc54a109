package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/rs/zerolog"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "bare object",
			input:  `{"sentiment": "Positive"}`,
			want:   `{"sentiment": "Positive"}`,
			wantOK: true,
		},
		{
			name:   "object wrapped in prose",
			input:  "Here is the result:\n{\"sentiment\": \"Negative\"}\nHope that helps!",
			want:   `{"sentiment": "Negative"}`,
			wantOK: true,
		},
		{
			name:   "object in code fence",
			input:  "```json\n{\"urgency\": \"High\"}\n```",
			want:   `{"urgency": "High"}`,
			wantOK: true,
		},
		{
			name:   "nested object",
			input:  `{"a": {"b": 1}, "c": 2}`,
			want:   `{"a": {"b": 1}, "c": 2}`,
			wantOK: true,
		},
		{
			name:   "braces inside string values",
			input:  `{"action": "use {curly} syntax"}`,
			want:   `{"action": "use {curly} syntax"}`,
			wantOK: true,
		},
		{
			name:   "escaped quote inside string",
			input:  `{"action": "say \"hi\" {now}"}`,
			want:   `{"action": "say \"hi\" {now}"}`,
			wantOK: true,
		},
		{
			name:   "no object",
			input:  "I cannot classify this review.",
			wantOK: false,
		},
		{
			name:   "unbalanced object",
			input:  `{"sentiment": "Positive"`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSON(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("extractJSON() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    *domain.Classification
		wantErr bool
	}{
		{
			name:  "valid reply",
			reply: `{"sentiment": "Negative", "category": "Logistics", "urgency": "High", "suggested_action": "Check tracking"}`,
			want: &domain.Classification{
				Sentiment:       domain.SentimentNegative,
				Category:        domain.CategoryLogistics,
				Urgency:         domain.UrgencyHigh,
				SuggestedAction: "Check tracking",
				Source:          domain.SourceRemote,
			},
		},
		{
			name:  "valid reply with surrounding prose",
			reply: "Sure! ```json\n{\"sentiment\": \"Positive\", \"category\": \"Other\", \"urgency\": \"Low\", \"suggested_action\": \"Thank for review\"}\n```",
			want: &domain.Classification{
				Sentiment:       domain.SentimentPositive,
				Category:        domain.CategoryOther,
				Urgency:         domain.UrgencyLow,
				SuggestedAction: "Thank for review",
				Source:          domain.SourceRemote,
			},
		},
		{
			name:    "hallucinated sentiment",
			reply:   `{"sentiment": "Angry", "category": "Quality", "urgency": "High", "suggested_action": "Refund"}`,
			wantErr: true,
		},
		{
			name:    "hallucinated category",
			reply:   `{"sentiment": "Negative", "category": "Shipping", "urgency": "High", "suggested_action": "Refund"}`,
			wantErr: true,
		},
		{
			name:    "missing urgency",
			reply:   `{"sentiment": "Negative", "category": "Quality", "suggested_action": "Refund"}`,
			wantErr: true,
		},
		{
			name:    "blank action",
			reply:   `{"sentiment": "Negative", "category": "Quality", "urgency": "High", "suggested_action": "  "}`,
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			reply:   "The review is negative.",
			wantErr: true,
		},
		{
			name:    "malformed JSON",
			reply:   `{"sentiment": Negative}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.reply)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseClassification() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseClassification() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseClassification() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// newTestClient points a gateway client at a stub chat-completions endpoint.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Timeout: 2 * time.Second,
	}, zerolog.Nop())
}

func completionReply(content string) string {
	return `{"id":"cmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":` + jsonString(content) + `},"finish_reason":"stop"}]}`
}

func jsonString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	return string(append(out, '"'))
}

// TestClassifyReviewRoundTrip exercises the full request/parse path against a
// stub endpoint.
func TestClassifyReviewRoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionReply(`{"sentiment": "Negative", "category": "Logistics", "urgency": "High", "suggested_action": "Check tracking"}`)))
	})

	got, err := client.ClassifyReview(context.Background(), "O pedido não chegou", domain.IntPtr(1))
	if err != nil {
		t.Fatalf("ClassifyReview() error = %v", err)
	}

	if got.Sentiment != domain.SentimentNegative ||
		got.Category != domain.CategoryLogistics ||
		got.Urgency != domain.UrgencyHigh ||
		got.SuggestedAction != "Check tracking" {
		t.Errorf("ClassifyReview() = %+v", got)
	}
	if got.Source != domain.SourceRemote {
		t.Errorf("Source = %v, want %v", got.Source, domain.SourceRemote)
	}
}

// TestClassifyReviewServerError verifies HTTP failures surface as
// out.ErrUnavailable.
func TestClassifyReviewServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.ClassifyReview(context.Background(), "qualquer texto", nil)
	if !errors.Is(err, out.ErrUnavailable) {
		t.Errorf("error = %v, want out.ErrUnavailable", err)
	}
}

// TestClassifyReviewInvalidReply verifies unparseable replies surface as
// out.ErrUnavailable rather than a partial result.
func TestClassifyReviewInvalidReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionReply("I would rate this review as quite negative overall.")))
	})

	result, err := client.ClassifyReview(context.Background(), "qualquer texto", nil)
	if !errors.Is(err, out.ErrUnavailable) {
		t.Errorf("error = %v, want out.ErrUnavailable", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
}

// TestCircuitBreakerOpensAfterFailures verifies repeated failures trip the
// breaker so later calls fail fast without hitting the endpoint.
func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	for i := 0; i < 8; i++ {
		client.ClassifyReview(context.Background(), "qualquer texto", nil)
	}

	if hits.Load() >= 8 {
		t.Errorf("endpoint hit %d times, want breaker to cut off after 5 consecutive failures", hits.Load())
	}

	_, err := client.ClassifyReview(context.Background(), "qualquer texto", nil)
	if !errors.Is(err, out.ErrUnavailable) {
		t.Errorf("error with open breaker = %v, want out.ErrUnavailable", err)
	}
}
