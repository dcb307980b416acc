package worker

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/config"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/service"
)

const (
	AutoSubmitPollTimeout = 1 * time.Second
	// AutoSubmitMaxRetries bounds how often a failing payload is requeued.
	AutoSubmitMaxRetries = 5
)

// ExpiredSubmitter grades an attempt closed by the sweeper.
type ExpiredSubmitter interface {
	SubmitExpired(ctx context.Context, closed model.ClosedAttempt) (*model.TestResult, error)
}

// AutoSubmitWorker consumes auto_submit_queue and stores one AUTO result per claimed attempt.
type AutoSubmitWorker struct {
	rdb       *redis.Client
	submitter ExpiredSubmitter
	log       zerolog.Logger
}

// NewAutoSubmitWorker creates a new AutoSubmitWorker.
func NewAutoSubmitWorker(rdb *redis.Client, submitter ExpiredSubmitter, log zerolog.Logger) *AutoSubmitWorker {
	return &AutoSubmitWorker{
		rdb:       rdb,
		submitter: submitter,
		log:       log.With().Str("component", "auto_submit_worker").Logger(),
	}
}

// Start runs the consumer loop until ctx is cancelled. Call in a goroutine.
// A payload popped before cancellation is still submitted.
func (w *AutoSubmitWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AutoSubmitWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("AutoSubmitWorker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutoSubmitWorker) processNext(ctx context.Context) {
	item, err := w.rdb.BLPop(ctx, AutoSubmitPollTimeout, config.WorkerKey.AutoSubmitQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(AutoSubmitPollTimeout)
		}
		return
	}
	if len(item) < 2 {
		return
	}

	var closed model.ClosedAttempt
	if err := sonic.Unmarshal([]byte(item[1]), &closed); err != nil {
		w.log.Error().Err(err).Str("payload", item[1]).Msg("Invalid auto-submit payload")
		return
	}

	w.handle(context.WithoutCancel(ctx), closed)
}

// handle submits one claimed attempt, requeueing it on transient failures.
func (w *AutoSubmitWorker) handle(ctx context.Context, closed model.ClosedAttempt) {
	log := w.log.With().
		Int("user_id", closed.UserID).
		Str("test_id", closed.TestID.String()).
		Logger()

	res, err := w.submitter.SubmitExpired(ctx, closed)
	if err == nil {
		log.Info().Float64("score", res.Score).Int("answers", len(closed.Answers)).Msg("Attempt auto-submitted")
		return
	}

	// The test was deleted or emptied after the attempt started.
	if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrNoQuestions) {
		log.Warn().Err(err).Msg("Dropping auto-submit for a test that can no longer be graded")
		return
	}

	if closed.Retries >= AutoSubmitMaxRetries {
		log.Error().Err(err).Interface("answers", closed.Answers).Msg("Auto-submit failed permanently")
		return
	}

	closed.Retries++
	log.Warn().Err(err).Int("retry", closed.Retries).Msg("Auto-submit failed, requeueing")
	if err := Enqueue(ctx, w.rdb, closed); err != nil {
		log.Error().Err(err).Interface("answers", closed.Answers).Msg("Requeue failed")
	}
}

// Enqueue pushes a claimed attempt onto auto_submit_queue.
func Enqueue(ctx context.Context, rdb *redis.Client, closed model.ClosedAttempt) error {
	raw, err := sonic.Marshal(closed)
	if err != nil {
		return err
	}
	return rdb.RPush(ctx, config.WorkerKey.AutoSubmitQueue, raw).Err()
}
