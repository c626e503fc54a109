package triage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"triage_server/core/domain"

	"github.com/rs/zerolog"
)

// echoRemote returns a classification carrying the input text, with an
// optional per-item delay, so ordering can be asserted end to end.
type echoRemote struct {
	delay func(text string) time.Duration

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (e *echoRemote) ClassifyReview(ctx context.Context, text string, score *int) (*domain.Classification, error) {
	cur := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		peak := e.maxInFlight.Load()
		if cur <= peak || e.maxInFlight.CompareAndSwap(peak, cur) {
			break
		}
	}

	if e.delay != nil {
		time.Sleep(e.delay(text))
	}

	return &domain.Classification{
		Sentiment:       domain.SentimentNeutral,
		Category:        domain.CategoryOther,
		Urgency:         domain.UrgencyLow,
		SuggestedAction: text,
		Source:          domain.SourceRemote,
	}, nil
}

func batchInputs(n int) []domain.ReviewInput {
	inputs := make([]domain.ReviewInput, n)
	for i := range inputs {
		inputs[i] = domain.ReviewInput{Text: fmt.Sprintf("review %02d", i)}
	}
	return inputs
}

// TestBatchOrderedResults verifies one result per input, in input order, even
// when later items finish first.
func TestBatchOrderedResults(t *testing.T) {
	const n = 8

	// Reverse delays: the last item finishes first.
	remote := &echoRemote{delay: func(text string) time.Duration {
		var idx int
		fmt.Sscanf(text, "review %d", &idx)
		return time.Duration(n-idx) * 2 * time.Millisecond
	}}

	for _, workers := range []int{1, 2, 4, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			classifier := NewClassifier(remote, nil, zerolog.Nop())
			orch := NewOrchestrator(classifier, nil, zerolog.Nop())

			inputs := batchInputs(n)
			stream := orch.Run(context.Background(), domain.BatchJob{
				Inputs:      inputs,
				WorkerCount: workers,
			})

			results, err := stream.Collect(context.Background())
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if len(results) != n {
				t.Fatalf("got %d results, want %d", len(results), n)
			}
			for i, r := range results {
				if r.SuggestedAction != inputs[i].Text {
					t.Errorf("result %d carries %q, want %q", i, r.SuggestedAction, inputs[i].Text)
				}
			}
			if stream.Completed() != n || stream.Emitted() != n {
				t.Errorf("Completed/Emitted = %d/%d, want %d/%d", stream.Completed(), stream.Emitted(), n, n)
			}
		})
	}
}

// TestBatchBoundedConcurrency verifies no more than WorkerCount items are in
// flight at once.
func TestBatchBoundedConcurrency(t *testing.T) {
	const workers = 2

	remote := &echoRemote{delay: func(string) time.Duration { return 5 * time.Millisecond }}
	classifier := NewClassifier(remote, nil, zerolog.Nop())
	orch := NewOrchestrator(classifier, nil, zerolog.Nop())

	stream := orch.Run(context.Background(), domain.BatchJob{
		Inputs:      batchInputs(10),
		WorkerCount: workers,
	})
	if _, err := stream.Collect(context.Background()); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if max := remote.maxInFlight.Load(); max > workers {
		t.Errorf("max in-flight = %d, want <= %d", max, workers)
	}
}

// TestBatchWorkerClamp verifies a non-positive worker count still runs.
func TestBatchWorkerClamp(t *testing.T) {
	classifier := NewClassifier(nil, nil, zerolog.Nop())
	orch := NewOrchestrator(classifier, nil, zerolog.Nop())

	stream := orch.Run(context.Background(), domain.BatchJob{
		Inputs:      batchInputs(3),
		WorkerCount: 0,
	})

	results, err := stream.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
}

// TestBatchEmptyJob verifies an empty batch yields an immediately closed
// stream.
func TestBatchEmptyJob(t *testing.T) {
	classifier := NewClassifier(nil, nil, zerolog.Nop())
	orch := NewOrchestrator(classifier, nil, zerolog.Nop())

	stream := orch.Run(context.Background(), domain.BatchJob{WorkerCount: 4})
	results, err := stream.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

// blockingRemote parks every call on a gate, ignoring the request context.
type blockingRemote struct {
	gate chan struct{}
}

func (b *blockingRemote) ClassifyReview(ctx context.Context, text string, score *int) (*domain.Classification, error) {
	<-b.gate
	return &domain.Classification{
		Sentiment:       domain.SentimentNeutral,
		Category:        domain.CategoryOther,
		Urgency:         domain.UrgencyLow,
		SuggestedAction: text,
		Source:          domain.SourceRemote,
	}, nil
}

// TestBatchCancellation verifies cancelling the batch context closes the
// stream without delivering all results.
func TestBatchCancellation(t *testing.T) {
	remote := &blockingRemote{gate: make(chan struct{})}
	t.Cleanup(func() { close(remote.gate) })

	classifier := NewClassifier(remote, nil, zerolog.Nop())
	orch := NewOrchestrator(classifier, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stream := orch.Run(ctx, domain.BatchJob{
		Inputs:      batchInputs(5),
		WorkerCount: 2,
	})

	var wg sync.WaitGroup
	var results []domain.Classification
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		results, err = stream.Collect(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	wg.Wait()

	if err == nil {
		t.Fatal("Collect() after cancel returned nil error")
	}
	if len(results) == 5 {
		t.Error("cancelled batch delivered all results")
	}
}
