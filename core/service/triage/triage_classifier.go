package triage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/rs/zerolog"
)

// =============================================================================
// Single-Item Classifier
// =============================================================================

// minTextLength is the minimal review length worth classifying, in runes.
const minTextLength = 2

// Classifier orchestrates one review through gateway → sanity, or on any
// gateway failure rule engine → sanity. It never fails outward: every input
// yields a valid classification.
//
// The remote gateway and cache are optional; a nil remote means pure offline
// mode and is not an error.
type Classifier struct {
	remote out.RemoteClassifier
	cache  out.ClassificationCache
	rules  *RuleEngine
	log    zerolog.Logger
}

// NewClassifier builds a classifier. remote and cache may be nil.
func NewClassifier(remote out.RemoteClassifier, cache out.ClassificationCache, log zerolog.Logger) *Classifier {
	return &Classifier{
		remote: remote,
		cache:  cache,
		rules:  NewRuleEngine(),
		log:    log.With().Str("component", "classifier").Logger(),
	}
}

// Offline reports whether the classifier runs without a remote gateway.
func (c *Classifier) Offline() bool {
	return c.remote == nil
}

// Classify triages a single review. Degenerate input (empty or shorter than
// two characters) short-circuits to a fixed neutral default without touching
// the gateway, the rule engine, or the cache.
func (c *Classifier) Classify(ctx context.Context, in domain.ReviewInput) domain.Classification {
	text := strings.TrimSpace(in.Text)
	if utf8.RuneCountInString(text) < minTextLength {
		return domain.Classification{
			Sentiment:       domain.SentimentNeutral,
			Category:        domain.CategoryUnknown,
			Urgency:         domain.UrgencyLow,
			SuggestedAction: "None",
			Source:          domain.SourceDefault,
		}
	}

	key := cacheKey(text, in.Score)
	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return *cached
		} else if err != nil {
			c.log.Debug().Err(err).Msg("cache read failed, classifying")
		}
	}

	draft := c.draft(ctx, text, in.Score)
	final := Reconcile(draft, in.Score, text)

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, &final); err != nil {
			c.log.Debug().Err(err).Msg("cache write failed")
		}
	}

	return final
}

// draft obtains the pre-sanity classification: remote when configured and
// reachable, rule engine otherwise.
func (c *Classifier) draft(ctx context.Context, text string, score *int) domain.Classification {
	if c.remote == nil {
		return c.rules.Classify(text)
	}

	result, err := c.remote.ClassifyReview(ctx, text, score)
	if err != nil {
		if !errors.Is(err, out.ErrUnavailable) {
			c.log.Warn().Err(err).Msg("unexpected gateway error, falling back to rules")
		}
		return c.rules.Classify(text)
	}
	return *result
}

// cacheKey digests (text, score) so cache entries stay stable across runs.
func cacheKey(text string, score *int) string {
	scorePart := "-"
	if score != nil {
		scorePart = fmt.Sprintf("%d", *score)
	}
	sum := sha1.Sum([]byte(scorePart + "|" + text))
	return "triage:classification:" + hex.EncodeToString(sum[:])
}
