package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	openai "github.com/sashabaranov/go-openai"
)

// classifyResponse is the fixed reply shape expected from the remote model.
// Unknown shapes are rejected at this boundary rather than passed through.
type classifyResponse struct {
	Sentiment       string `json:"sentiment"`
	Category        string `json:"category"`
	Urgency         string `json:"urgency"`
	SuggestedAction string `json:"suggested_action"`
}

const classifySystemPrompt = `You are a customer review triage AI for an e-commerce marketplace.
Analyze the review text (usually PT-BR) and respond with JSON only.

RULES:
1. "Mas"/"Porém" inverts the sentiment (e.g. "Bom, mas atrasou" = Negative).
2. "Não entregou"/"Extraviado" = High urgency.
3. "Não recomendo" = Negative.
4. Praise ("Ótimo", "Amei") = Positive.

SUGGESTED ACTIONS:
- Logistics issue -> "Check tracking"
- Product issue   -> "Authorize exchange"
- Praise          -> "Thank for review"

Respond with this exact JSON format:
{
  "sentiment": "Positive" | "Negative" | "Neutral",
  "category": "Logistics" | "Quality" | "Support" | "Price" | "Other",
  "urgency": "High" | "Medium" | "Low",
  "suggested_action": "short action (max 4 words)"
}`

// fewShotExemplars are fixed illustrative pairs sent with every request.
// They are never derived from the batch being classified.
var fewShotExemplars = []openai.ChatCompletionMessage{
	{
		Role:    openai.ChatMessageRoleUser,
		Content: `TEXT: "Gostei, mas veio quebrado." SCORE: 1/5`,
	},
	{
		Role:    openai.ChatMessageRoleAssistant,
		Content: `{"sentiment": "Negative", "category": "Logistics", "urgency": "High", "suggested_action": "Immediate exchange"}`,
	},
	{
		Role:    openai.ChatMessageRoleUser,
		Content: `TEXT: "Não tenho o que reclamar, tudo nos conformes." SCORE: 5/5`,
	},
	{
		Role:    openai.ChatMessageRoleAssistant,
		Content: `{"sentiment": "Positive", "category": "Other", "urgency": "Low", "suggested_action": "Thank for review"}`,
	},
	{
		Role:    openai.ChatMessageRoleUser,
		Content: `TEXT: "O pedido está atrasado há duas semanas." SCORE: 2/5`,
	},
	{
		Role:    openai.ChatMessageRoleAssistant,
		Content: `{"sentiment": "Negative", "category": "Logistics", "urgency": "High", "suggested_action": "Check tracking"}`,
	},
	{
		Role:    openai.ChatMessageRoleUser,
		Content: `TEXT: "Atendimento grosseiro, mas o produto é bom." SCORE: 3/5`,
	},
	{
		Role:    openai.ChatMessageRoleAssistant,
		Content: `{"sentiment": "Negative", "category": "Support", "urgency": "Medium", "suggested_action": "Train support team"}`,
	},
}

// ClassifyReview performs a single remote classification attempt. Every
// failure mode (transport, timeout, open circuit, parse, invalid fields)
// collapses into out.ErrUnavailable; retry policy belongs to the caller.
func (c *Client) ClassifyReview(ctx context.Context, text string, score *int) (*domain.Classification, error) {
	scoreHint := "SCORE: not provided"
	if score != nil {
		scoreHint = fmt.Sprintf("SCORE: %d/5", *score)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(fewShotExemplars)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: classifySystemPrompt,
	})
	messages = append(messages, fewShotExemplars...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf("TEXT: %q %s", text, scoreHint),
	})

	reply, err := c.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		c.log.Debug().Err(err).Msg("remote classification failed")
		return nil, fmt.Errorf("%w: %v", out.ErrUnavailable, err)
	}

	result, err := parseClassification(reply.(string))
	if err != nil {
		c.log.Debug().Err(err).Msg("remote reply rejected")
		return nil, fmt.Errorf("%w: %v", out.ErrUnavailable, err)
	}

	return result, nil
}

// parseClassification extracts and validates the structured payload from a
// model reply that may carry surrounding prose or code fences.
func parseClassification(reply string) (*domain.Classification, error) {
	fragment, ok := extractJSON(reply)
	if !ok {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var resp classifyResponse
	if err := json.Unmarshal([]byte(fragment), &resp); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	c := domain.Classification{
		Sentiment:       domain.Sentiment(resp.Sentiment),
		Category:        domain.Category(resp.Category),
		Urgency:         domain.Urgency(resp.Urgency),
		SuggestedAction: strings.TrimSpace(resp.SuggestedAction),
		Source:          domain.SourceRemote,
	}

	switch {
	case !domain.ValidSentiment(c.Sentiment):
		return nil, fmt.Errorf("invalid sentiment %q", resp.Sentiment)
	case !domain.ValidCategory(c.Category):
		return nil, fmt.Errorf("invalid category %q", resp.Category)
	case !domain.ValidUrgency(c.Urgency):
		return nil, fmt.Errorf("invalid urgency %q", resp.Urgency)
	case c.SuggestedAction == "":
		return nil, fmt.Errorf("missing suggested_action")
	}

	return &c, nil
}

// extractJSON returns the first balanced {...} fragment in s, skipping braces
// inside string literals. Models often wrap the payload in prose or fences.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
