// Package http provides Fiber HTTP handlers for the triage API.
package http

import (
	"time"

	"triage_server/adapter/in/ingest"
	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/report"
	"triage_server/core/service/triage"
	"triage_server/pkg/apperr"
	"triage_server/pkg/metrics"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxBatchSize = 5000

// TriageHandler handles review classification requests.
type TriageHandler struct {
	classifier     *triage.Classifier
	orchestrator   *triage.Orchestrator
	repo           out.BatchResultRepository
	latency        *metrics.LatencyTracker
	defaultWorkers int
}

// NewTriageHandler creates a new triage handler. repo and latency may be nil.
func NewTriageHandler(
	classifier *triage.Classifier,
	orchestrator *triage.Orchestrator,
	repo out.BatchResultRepository,
	latency *metrics.LatencyTracker,
	defaultWorkers int,
) *TriageHandler {
	if defaultWorkers < 1 {
		defaultWorkers = 1
	}
	return &TriageHandler{
		classifier:     classifier,
		orchestrator:   orchestrator,
		repo:           repo,
		latency:        latency,
		defaultWorkers: defaultWorkers,
	}
}

// Register registers triage routes.
func (h *TriageHandler) Register(router fiber.Router) {
	triageGroup := router.Group("/triage")

	triageGroup.Post("/review", h.ClassifyReview)
	triageGroup.Post("/batch", h.ClassifyBatch)
	triageGroup.Post("/upload", h.ClassifyUpload)
	triageGroup.Get("/batches/:id", h.GetBatch)
	triageGroup.Get("/metrics", h.Metrics)
}

// =============================================================================
// Request / Response types
// =============================================================================

type reviewRequest struct {
	Text  string `json:"text"`
	Score *int   `json:"score"`
}

type batchRequest struct {
	Reviews []reviewRequest `json:"reviews"`
	Workers int             `json:"workers"`
}

type batchResponse struct {
	BatchID string                  `json:"batch_id,omitempty"`
	Reviews []report.EnrichedReview `json:"reviews"`
	Summary report.Summary          `json:"summary"`
}

// =============================================================================
// Handlers
// =============================================================================

// ClassifyReview classifies a single review.
func (h *TriageHandler) ClassifyReview(c *fiber.Ctx) error {
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	if req.Score != nil && (*req.Score < 1 || *req.Score > 5) {
		return apperr.Validation("score must be between 1 and 5")
	}

	result := h.classifier.Classify(c.Context(), domain.ReviewInput{
		Text:  req.Text,
		Score: req.Score,
	})

	return response.OK(c, result)
}

// ClassifyBatch classifies a batch of reviews concurrently, returning results
// in request order.
func (h *TriageHandler) ClassifyBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	if len(req.Reviews) == 0 {
		return apperr.Validation("reviews must not be empty")
	}
	if len(req.Reviews) > maxBatchSize {
		return apperr.Validation("batch too large").WithDetail("max", maxBatchSize)
	}
	for i, r := range req.Reviews {
		if r.Score != nil && (*r.Score < 1 || *r.Score > 5) {
			return apperr.Validation("score must be between 1 and 5").WithDetail("index", i)
		}
	}

	inputs := make([]domain.ReviewInput, len(req.Reviews))
	for i, r := range req.Reviews {
		inputs[i] = domain.ReviewInput{Text: r.Text, Score: r.Score}
	}

	return h.runBatch(c, inputs, req.Workers)
}

// ClassifyUpload classifies reviews from an uploaded CSV file.
func (h *TriageHandler) ClassifyUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperr.BadRequest("missing file upload").WithError(err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperr.BadRequest("failed to open upload").WithError(err)
	}
	defer file.Close()

	inputs, err := ingest.LoadReviews(file)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	if len(inputs) == 0 {
		return apperr.Validation("uploaded file contains no reviews")
	}
	if len(inputs) > maxBatchSize {
		return apperr.Validation("batch too large").WithDetail("max", maxBatchSize)
	}

	workers := c.QueryInt("workers", 0)
	return h.runBatch(c, inputs, workers)
}

func (h *TriageHandler) runBatch(c *fiber.Ctx, inputs []domain.ReviewInput, workers int) error {
	if workers < 1 {
		workers = h.defaultWorkers
	}

	stream := h.orchestrator.Run(c.Context(), domain.BatchJob{
		Inputs:      inputs,
		WorkerCount: workers,
	})

	results, err := stream.Collect(c.Context())
	if err != nil {
		return apperr.Timeout("batch cancelled before completion")
	}

	enriched, err := report.Enrich(inputs, results)
	if err != nil {
		return apperr.Internal(err, "failed to enrich batch")
	}

	resp := batchResponse{
		Reviews: enriched,
		Summary: report.Summarize(results),
	}

	if h.repo != nil {
		record := &out.BatchRecord{
			ID:          uuid.New(),
			WorkerCount: workers,
			Inputs:      inputs,
			Results:     results,
			CreatedAt:   time.Now().UTC(),
		}
		if err := h.repo.SaveBatch(c.Context(), record); err != nil {
			return apperr.Internal(err, "failed to persist batch")
		}
		resp.BatchID = record.ID.String()
	}

	return response.OKWithMeta(c, resp, &response.Meta{Total: len(results)})
}

// GetBatch returns a previously persisted batch run.
func (h *TriageHandler) GetBatch(c *fiber.Ctx) error {
	if h.repo == nil {
		return apperr.NotConfigured("batch storage is not configured")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.BadRequest("invalid batch id")
	}

	record, err := h.repo.GetBatch(c.Context(), id)
	if err != nil {
		return apperr.Internal(err, "failed to load batch")
	}
	if record == nil {
		return apperr.NotFound("batch not found")
	}

	enriched, err := report.Enrich(record.Inputs, record.Results)
	if err != nil {
		return apperr.Internal(err, "stored batch is inconsistent")
	}

	return response.OK(c, batchResponse{
		BatchID: record.ID.String(),
		Reviews: enriched,
		Summary: report.Summarize(record.Results),
	})
}

// Metrics returns classification latency statistics.
func (h *TriageHandler) Metrics(c *fiber.Ctx) error {
	if h.latency == nil {
		return apperr.NotConfigured("latency tracking is not configured")
	}
	return response.OK(c, h.latency.Stats().ToMap())
}
