package triage

import (
	"context"
	"sync/atomic"
	"time"

	"triage_server/core/domain"
	"triage_server/pkg/metrics"

	"github.com/rs/zerolog"
)

// =============================================================================
// Batch Orchestrator (ordered bounded worker pool)
// =============================================================================

// Orchestrator runs the single-item classifier over a batch with a bounded
// pool of workers while delivering results strictly in input order. Ordered
// delivery is deliberate: downstream enrichment zips results positionally
// against the source rows, so a smoother progress signal is traded away for
// row-alignment safety.
type Orchestrator struct {
	classifier *Classifier
	latency    *metrics.LatencyTracker
	log        zerolog.Logger
}

// NewOrchestrator builds a batch orchestrator. tracker may be nil.
func NewOrchestrator(classifier *Classifier, tracker *metrics.LatencyTracker, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		latency:    tracker,
		log:        log.With().Str("component", "batch_orchestrator").Logger(),
	}
}

// BatchStream is the finite, non-restartable result sequence of one batch.
// Its channel yields exactly one classification per input, in input order.
type BatchStream struct {
	results   chan domain.Classification
	total     int
	completed atomic.Int64
	emitted   atomic.Int64
}

// Results is the ordered result channel. It closes after the last item or
// when the batch context is cancelled.
func (s *BatchStream) Results() <-chan domain.Classification {
	return s.results
}

// Total is the number of inputs in the batch.
func (s *BatchStream) Total() int { return s.total }

// Completed is how many items finished classification (any order); drives
// progress reporting.
func (s *BatchStream) Completed() int { return int(s.completed.Load()) }

// Emitted is how many results were delivered in order so far.
func (s *BatchStream) Emitted() int { return int(s.emitted.Load()) }

// Collect drains the stream into a slice. It returns ctx.Err if the batch was
// cancelled before all results were delivered.
func (s *BatchStream) Collect(ctx context.Context) ([]domain.Classification, error) {
	results := make([]domain.Classification, 0, s.total)
	for {
		select {
		case r, ok := <-s.results:
			if !ok {
				if len(results) != s.total {
					return results, ctx.Err()
				}
				return results, nil
			}
			results = append(results, r)
		case <-ctx.Done():
			return results, ctx.Err()
		}
	}
}

// Run dispatches the batch and returns its result stream immediately.
//
// At most job.WorkerCount items are in flight between dispatch and ordered
// emission: a worker slot is reclaimed only when the item's result has been
// consumed, so a consumer that stops draining also stops further dispatch
// while already-dispatched items run to completion.
func (o *Orchestrator) Run(ctx context.Context, job domain.BatchJob) *BatchStream {
	workers := job.WorkerCount
	if workers < 1 {
		workers = 1
	}

	stream := &BatchStream{
		results: make(chan domain.Classification),
		total:   len(job.Inputs),
	}

	slots := make([]chan domain.Classification, len(job.Inputs))
	for i := range slots {
		slots[i] = make(chan domain.Classification, 1)
	}

	sem := make(chan struct{}, workers)

	// Dispatcher: bounded fan-out in input order.
	go func() {
		for i, in := range job.Inputs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				o.log.Debug().Int("dispatched", i).Msg("batch cancelled, stopping dispatch")
				return
			}

			go func(idx int, input domain.ReviewInput) {
				start := time.Now()
				result := o.classifier.Classify(ctx, input)
				if o.latency != nil {
					o.latency.Record(time.Since(start))
				}
				stream.completed.Add(1)
				slots[idx] <- result
			}(i, in)
		}
	}()

	// Emitter: strict input-order delivery; frees a worker slot per item
	// only once its result has been handed to the consumer.
	go func() {
		defer close(stream.results)
		for i := range slots {
			var result domain.Classification
			select {
			case result = <-slots[i]:
			case <-ctx.Done():
				return
			}

			select {
			case stream.results <- result:
				stream.emitted.Add(1)
				<-sem
			case <-ctx.Done():
				return
			}
		}
	}()

	return stream
}
