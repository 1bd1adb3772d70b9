package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/logger"
)

// JobResult is the outcome of processing one owner.
type JobResult struct {
	ID       string
	Owner    domain.Owner
	Chunks   int
	Err      error
	Duration time.Duration
}

// Queue processes owners on a fixed number of workers. A failing job never
// stops the others.
type Queue struct {
	pipeline *Pipeline
	group    errgroup.Group
	logger   *zap.Logger

	mu      sync.Mutex
	results []JobResult
}

func (p *Pipeline) NewQueue() *Queue {
	q := &Queue{pipeline: p, logger: p.logger}
	q.group.SetLimit(p.cfg.Workers)
	return q
}

// Submit enqueues owner and returns its job ID. It blocks while every worker is busy.
// Cancelling ctx fails the job if it is still running.
func (q *Queue) Submit(ctx context.Context, owner domain.Owner) string {
	id := uuid.NewString()
	log := logger.WithOwner(q.logger, string(owner.Kind), owner.ID).With(zap.String(logger.FieldJobID, id))

	q.group.Go(func() error {
		start := time.Now()
		log.Debug("job started")

		chunks, err := q.pipeline.Process(ctx, owner)
		result := JobResult{ID: id, Owner: owner, Chunks: chunks, Err: err, Duration: time.Since(start)}

		switch {
		case err == nil:
			log.Info("job completed", zap.Int("chunks", chunks), zap.Duration("duration", result.Duration))
		case domain.IsPreconditionViolation(err):
			log.Warn("job skipped", zap.Error(err))
		case isCancelled(err):
			log.Warn("job cancelled", zap.Error(err))
		default:
			log.Error("job failed", zap.Error(err))
		}

		q.mu.Lock()
		q.results = append(q.results, result)
		q.mu.Unlock()
		return nil
	})

	return id
}

// Wait blocks until every submitted job finished and returns their results in
// completion order.
func (q *Queue) Wait() []JobResult {
	_ = q.group.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.results
}

// RunAll submits every owner and waits for them.
func (p *Pipeline) RunAll(ctx context.Context, owners []domain.Owner) []JobResult {
	q := p.NewQueue()
	for _, owner := range owners {
		if ctx.Err() != nil {
			break
		}
		q.Submit(ctx, owner)
	}
	return q.Wait()
}
