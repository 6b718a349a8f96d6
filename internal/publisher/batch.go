package publisher

import (
	"context"
	"log/slog"
	"sync"
)

// Batch fans videos out over a bounded worker pool and collects one Outcome
// per video. Outcomes are returned in completion order.
type Batch struct {
	session *Session
	workers int
}

func NewBatch(session *Session, workers int) *Batch {
	if workers < 1 {
		workers = 1
	}
	return &Batch{session: session, workers: workers}
}

// Run publishes every video and always returns exactly len(videos) outcomes.
func (b *Batch) Run(ctx context.Context, videos []string) []Outcome {
	if len(videos) == 0 {
		return nil
	}

	slog.Info("Publishing batch", "videos", len(videos), "workers", b.workers)

	var wg sync.WaitGroup
	sem := make(chan struct{}, b.workers)
	results := make(chan Outcome, len(videos))

	for _, video := range videos {
		wg.Add(1)
		go func(video string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- b.session.Publish(ctx, video)
		}(video)
	}

	wg.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(videos))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
