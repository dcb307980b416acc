package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/model"
)

const (
	// SweepBatchSize is the most attempts claimed per run.
	SweepBatchSize = 200
	sweepTimeout   = 10 * time.Second
)

// AttemptClaimer claims attempts whose deadline plus grace has passed.
type AttemptClaimer interface {
	ClaimExpired(ctx context.Context, limit int64) ([]model.ClosedAttempt, error)
}

// ExpirySweeper periodically claims expired attempts and queues them for auto-submission.
type ExpirySweeper struct {
	claimer   AttemptClaimer
	rdb       *redis.Client
	fallback  ExpiredSubmitter
	interval  int
	scheduler *gocron.Scheduler
	log       zerolog.Logger
}

// NewExpirySweeper creates a sweeper running every intervalSeconds.
// fallback grades a claimed attempt inline when the queue is unreachable.
func NewExpirySweeper(claimer AttemptClaimer, rdb *redis.Client, fallback ExpiredSubmitter, intervalSeconds int, log zerolog.Logger) *ExpirySweeper {
	if intervalSeconds <= 0 {
		intervalSeconds = 5
	}
	return &ExpirySweeper{
		claimer:   claimer,
		rdb:       rdb,
		fallback:  fallback,
		interval:  intervalSeconds,
		scheduler: gocron.NewScheduler(time.UTC),
		log:       log.With().Str("component", "expiry_sweeper").Logger(),
	}
}

// Start schedules the sweep. Runs never overlap.
func (s *ExpirySweeper) Start() error {
	s.scheduler.SingletonModeAll()
	if _, err := s.scheduler.Every(s.interval).Seconds().Do(s.run); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.log.Info().Int("interval_seconds", s.interval).Msg("ExpirySweeper started")
	return nil
}

// Stop terminates the schedule.
func (s *ExpirySweeper) Stop() {
	s.scheduler.Stop()
	s.log.Info().Msg("ExpirySweeper stopped")
}

func (s *ExpirySweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("Sweep failed")
	}
}

// Sweep claims expired attempts until none are left and returns how many it queued.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	total := 0
	for {
		claimed, err := s.claimer.ClaimExpired(ctx, SweepBatchSize)
		for _, closed := range claimed {
			s.dispatch(ctx, closed)
		}
		total += len(claimed)

		if err != nil {
			return total, err
		}
		if len(claimed) < SweepBatchSize {
			if total > 0 {
				s.log.Info().Int("claimed", total).Msg("Expired attempts queued")
			}
			return total, nil
		}
	}
}

// dispatch queues a claimed attempt; the attempt is already removed from
// Redis, so if the queue is unreachable it is graded inline instead.
func (s *ExpirySweeper) dispatch(ctx context.Context, closed model.ClosedAttempt) {
	err := Enqueue(ctx, s.rdb, closed)
	if err == nil {
		return
	}

	log := s.log.With().Int("user_id", closed.UserID).Str("test_id", closed.TestID.String()).Logger()
	log.Warn().Err(err).Msg("Enqueue failed, submitting inline")

	if s.fallback == nil {
		log.Error().Interface("answers", closed.Answers).Msg("Claimed attempt dropped")
		return
	}
	if _, err := s.fallback.SubmitExpired(ctx, closed); err != nil {
		log.Error().Err(err).Interface("answers", closed.Answers).Msg("Inline auto-submit failed")
	}
}
