// Package out defines outbound ports for the triage core.
package out

import (
	"context"
	"errors"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
)

// ErrUnavailable is returned by a RemoteClassifier when no usable result could
// be obtained: transport failure, timeout, open circuit, or an unparseable or
// invalid reply. Callers fall back to the local rule engine.
var ErrUnavailable = errors.New("remote classifier unavailable")

// RemoteClassifier is one round trip to an external text-classification
// service. Implementations never return a partially valid classification:
// either all fields parsed and validated, or ErrUnavailable.
type RemoteClassifier interface {
	ClassifyReview(ctx context.Context, text string, score *int) (*domain.Classification, error)
}

// ClassificationCache is an optional read-through cache keyed by a digest of
// (text, score). Stored values are post-sanity and therefore stable.
type ClassificationCache interface {
	Get(ctx context.Context, key string) (*domain.Classification, bool, error)
	Set(ctx context.Context, key string, c *domain.Classification) error
}

// BatchRecord is a persisted triage run: inputs and results row-aligned by
// position.
type BatchRecord struct {
	ID          uuid.UUID
	WorkerCount int
	Inputs      []domain.ReviewInput
	Results     []domain.Classification
	CreatedAt   time.Time
}

// BatchResultRepository stores completed batch runs for later retrieval.
type BatchResultRepository interface {
	SaveBatch(ctx context.Context, record *BatchRecord) error
	GetBatch(ctx context.Context, id uuid.UUID) (*BatchRecord, error)
}
