// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Batch Result Adapter
// =============================================================================

// BatchResultAdapter implements out.BatchResultRepository on Postgres.
type BatchResultAdapter struct {
	db *sqlx.DB
}

var _ out.BatchResultRepository = (*BatchResultAdapter)(nil)

// NewBatchResultAdapter creates a new BatchResultAdapter.
func NewBatchResultAdapter(db *sqlx.DB) *BatchResultAdapter {
	return &BatchResultAdapter{db: db}
}

// EnsureSchema creates the batch tables if they do not exist.
func (a *BatchResultAdapter) EnsureSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS triage_batches (
	id UUID PRIMARY KEY,
	worker_count INT NOT NULL,
	total INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS triage_results (
	batch_id UUID NOT NULL REFERENCES triage_batches(id) ON DELETE CASCADE,
	position INT NOT NULL,
	review_text TEXT NOT NULL,
	review_score INT,
	sentiment TEXT NOT NULL,
	category TEXT NOT NULL,
	urgency TEXT NOT NULL,
	suggested_action TEXT NOT NULL,
	reasoning_trace JSONB,
	source TEXT NOT NULL,
	PRIMARY KEY (batch_id, position)
);`

	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure triage schema: %w", err)
	}
	return nil
}

// batchRow represents a triage_batches row.
type batchRow struct {
	ID          uuid.UUID `db:"id"`
	WorkerCount int       `db:"worker_count"`
	Total       int       `db:"total"`
	CreatedAt   time.Time `db:"created_at"`
}

// resultRow represents a triage_results row.
type resultRow struct {
	BatchID         uuid.UUID `db:"batch_id"`
	Position        int       `db:"position"`
	ReviewText      string    `db:"review_text"`
	ReviewScore     *int      `db:"review_score"`
	Sentiment       string    `db:"sentiment"`
	Category        string    `db:"category"`
	Urgency         string    `db:"urgency"`
	SuggestedAction string    `db:"suggested_action"`
	ReasoningTrace  []byte    `db:"reasoning_trace"`
	Source          string    `db:"source"`
}

// SaveBatch persists a completed batch run in one transaction.
func (a *BatchResultAdapter) SaveBatch(ctx context.Context, record *out.BatchRecord) error {
	if len(record.Inputs) != len(record.Results) {
		return fmt.Errorf("batch %s has %d inputs but %d results", record.ID, len(record.Inputs), len(record.Results))
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO triage_batches (id, worker_count, total, created_at) VALUES ($1, $2, $3, $4)`,
		record.ID, record.WorkerCount, len(record.Inputs), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	const insertResult = `
		INSERT INTO triage_results
			(batch_id, position, review_text, review_score, sentiment, category, urgency, suggested_action, reasoning_trace, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for i, in := range record.Inputs {
		r := record.Results[i]

		trace, err := json.Marshal(r.ReasoningTrace)
		if err != nil {
			return fmt.Errorf("failed to encode reasoning trace: %w", err)
		}

		_, err = tx.ExecContext(ctx, insertResult,
			record.ID, i, in.Text, in.Score,
			string(r.Sentiment), string(r.Category), string(r.Urgency),
			r.SuggestedAction, trace, string(r.Source))
		if err != nil {
			return fmt.Errorf("failed to insert batch result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch with its row-aligned inputs and results.
func (a *BatchResultAdapter) GetBatch(ctx context.Context, id uuid.UUID) (*out.BatchRecord, error) {
	var batch batchRow
	err := a.db.GetContext(ctx, &batch, `SELECT * FROM triage_batches WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	var rows []resultRow
	err = a.db.SelectContext(ctx, &rows,
		`SELECT * FROM triage_results WHERE batch_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch results: %w", err)
	}

	record := &out.BatchRecord{
		ID:          batch.ID,
		WorkerCount: batch.WorkerCount,
		CreatedAt:   batch.CreatedAt,
		Inputs:      make([]domain.ReviewInput, len(rows)),
		Results:     make([]domain.Classification, len(rows)),
	}

	for i, row := range rows {
		record.Inputs[i] = domain.ReviewInput{Text: row.ReviewText, Score: row.ReviewScore}

		var trace []string
		if len(row.ReasoningTrace) > 0 {
			if err := json.Unmarshal(row.ReasoningTrace, &trace); err != nil {
				return nil, fmt.Errorf("failed to decode reasoning trace: %w", err)
			}
		}

		record.Results[i] = domain.Classification{
			Sentiment:       domain.Sentiment(row.Sentiment),
			Category:        domain.Category(row.Category),
			Urgency:         domain.Urgency(row.Urgency),
			SuggestedAction: row.SuggestedAction,
			ReasoningTrace:  trace,
			Source:          domain.ClassificationSource(row.Source),
		}
	}

	return record, nil
}
