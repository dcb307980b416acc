package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/config"
	"github.com/stemsi/testhub-backend/internal/model"
)

const (
	// attemptKeyPadding keeps attempt keys alive past the deadline long
	// enough for the sweeper to pick them up after an outage.
	attemptKeyPadding = time.Hour
	// autoSubmittedTTL bounds how long a late manual submit is rejected.
	autoSubmittedTTL = time.Hour
)

// claimScript removes an attempt from the deadline set and, only if this
// caller removed it, marks it as auto-submitted. Returns 1 on claim.
var claimScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
	redis.call('SET', KEYS[2], '1', 'EX', ARGV[2])
	return 1
end
return 0
`)

// AttemptService tracks server-timed attempts in Redis.
//
// Every running attempt is a member of a sorted set scored by its deadline.
// Whoever removes the member (a manual submit or the expiry sweeper) owns
// the attempt; ZREM is atomic, so each attempt is closed exactly once.
type AttemptService struct {
	rdb   *redis.Client
	grace time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		rdb:   rdb,
		grace: cfg.AttemptGrace,
		log:   log.With().Str("component", "attempt_service").Logger(),
		now:   time.Now,
	}
}

// Start begins an attempt, or returns the running one unchanged.
func (s *AttemptService) Start(ctx context.Context, userID int, test *model.Test) (*model.Attempt, error) {
	testID := test.ID.String()
	now := s.now()
	duration := time.Duration(test.DurationMinutes) * time.Minute
	ttl := duration + s.grace + attemptKeyPadding

	started, err := s.rdb.SetNX(ctx, config.CacheKey.AttemptStartKey(testID, userID), now.Unix(), ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}

	if started {
		pipe := s.rdb.TxPipeline()
		pipe.ZAdd(ctx, config.CacheKey.AttemptDeadlines(), redis.Z{
			Score:  float64(now.Add(duration).Unix()),
			Member: config.CacheKey.AttemptMember(testID, userID),
		})
		pipe.Del(ctx,
			config.CacheKey.AttemptAnswersKey(testID, userID),
			config.CacheKey.AttemptAutoSubmittedKey(testID, userID),
		)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("register deadline: %w", err)
		}

		s.log.Info().Int("user_id", userID).Str("test_id", testID).Msg("Attempt started")
	}

	return s.State(ctx, userID, test.ID)
}

// State returns the running attempt with its autosaved answers.
func (s *AttemptService) State(ctx context.Context, userID int, testID uuid.UUID) (*model.Attempt, error) {
	tid := testID.String()

	pipe := s.rdb.Pipeline()
	startCmd := pipe.Get(ctx, config.CacheKey.AttemptStartKey(tid, userID))
	deadlineCmd := pipe.ZScore(ctx, config.CacheKey.AttemptDeadlines(), config.CacheKey.AttemptMember(tid, userID))
	answersCmd := pipe.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(tid, userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read attempt: %w", err)
	}

	startUnix, err := startCmd.Int64()
	if err != nil {
		return nil, ErrNoActiveAttempt
	}
	deadlineUnix, err := deadlineCmd.Result()
	if err != nil {
		return nil, ErrNoActiveAttempt
	}

	deadline := time.Unix(int64(deadlineUnix), 0)
	remaining := int(deadline.Sub(s.now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	return &model.Attempt{
		TestID:           testID,
		UserID:           userID,
		StartedAt:        time.Unix(startUnix, 0),
		Deadline:         deadline,
		RemainingSeconds: remaining,
		Answers:          answersCmd.Val(),
	}, nil
}

// Autosave records one answer on a running attempt.
func (s *AttemptService) Autosave(ctx context.Context, userID int, testID, questionID uuid.UUID, option string) error {
	tid := testID.String()

	deadlineUnix, err := s.rdb.ZScore(ctx, config.CacheKey.AttemptDeadlines(), config.CacheKey.AttemptMember(tid, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNoActiveAttempt
		}
		return fmt.Errorf("read deadline: %w", err)
	}

	deadline := time.Unix(int64(deadlineUnix), 0)
	if s.now().After(deadline) {
		return ErrNoActiveAttempt
	}

	answersKey := config.CacheKey.AttemptAnswersKey(tid, userID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, answersKey, questionID.String(), option)
	pipe.Expire(ctx, answersKey, s.keyTTL(deadline))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	return nil
}

// Finish claims the caller's running attempt for a manual submission.
// It returns nil when the user has no running attempt, and
// ErrAttemptSubmitted when the sweeper closed it first.
func (s *AttemptService) Finish(ctx context.Context, userID int, testID uuid.UUID) (*model.ClosedAttempt, error) {
	tid := testID.String()
	member := config.CacheKey.AttemptMember(tid, userID)

	pipe := s.rdb.TxPipeline()
	scoreCmd := pipe.ZScore(ctx, config.CacheKey.AttemptDeadlines(), member)
	remCmd := pipe.ZRem(ctx, config.CacheKey.AttemptDeadlines(), member)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("claim attempt: %w", err)
	}
	removed, err := remCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("claim attempt: %w", err)
	}

	if removed == 0 {
		// The marker is consumed so only the one late submit is rejected.
		n, err := s.rdb.Del(ctx, config.CacheKey.AttemptAutoSubmittedKey(tid, userID)).Result()
		if err != nil {
			return nil, fmt.Errorf("check auto-submit: %w", err)
		}
		if n > 0 {
			return nil, ErrAttemptSubmitted
		}
		return nil, nil
	}

	closed, err := s.collect(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	closed.Deadline = time.Unix(int64(scoreCmd.Val()), 0)
	return closed, nil
}

// Restore puts a claimed attempt back under its original deadline, with its
// start time and answers. A deadline that has already passed leaves the
// attempt for the sweeper.
func (s *AttemptService) Restore(ctx context.Context, closed *model.ClosedAttempt) error {
	tid := closed.TestID.String()
	ttl := s.keyTTL(closed.Deadline)
	answersKey := config.CacheKey.AttemptAnswersKey(tid, closed.UserID)

	pipe := s.rdb.TxPipeline()
	if !closed.StartedAt.IsZero() {
		pipe.Set(ctx, config.CacheKey.AttemptStartKey(tid, closed.UserID), closed.StartedAt.Unix(), ttl)
	}
	if len(closed.Answers) > 0 {
		values := make(map[string]interface{}, len(closed.Answers))
		for k, v := range closed.Answers {
			values[k] = v
		}
		pipe.HSet(ctx, answersKey, values)
		pipe.Expire(ctx, answersKey, ttl)
	}
	pipe.ZAdd(ctx, config.CacheKey.AttemptDeadlines(), redis.Z{
		Score:  float64(closed.Deadline.Unix()),
		Member: config.CacheKey.AttemptMember(tid, closed.UserID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("restore attempt: %w", err)
	}

	s.log.Warn().Int("user_id", closed.UserID).Str("test_id", tid).Msg("Attempt restored after failed submit")
	return nil
}

// keyTTL is relative so expiry does not depend on the app host and Redis
// agreeing on the clock.
func (s *AttemptService) keyTTL(deadline time.Time) time.Duration {
	ttl := deadline.Sub(s.now()) + s.grace
	if ttl < 0 {
		ttl = 0
	}
	return ttl + attemptKeyPadding
}

// ClaimExpired claims up to limit attempts whose deadline plus grace has passed.
func (s *AttemptService) ClaimExpired(ctx context.Context, limit int64) ([]model.ClosedAttempt, error) {
	cutoff := s.now().Add(-s.grace).Unix()

	members, err := s.rdb.ZRangeByScore(ctx, config.CacheKey.AttemptDeadlines(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(cutoff, 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}

	claimed := make([]model.ClosedAttempt, 0, len(members))
	for _, member := range members {
		userID, testID, err := parseAttemptMember(member)
		if err != nil {
			s.log.Warn().Str("member", member).Msg("Dropping malformed attempt member")
			s.rdb.ZRem(ctx, config.CacheKey.AttemptDeadlines(), member)
			continue
		}

		keys := []string{
			config.CacheKey.AttemptDeadlines(),
			config.CacheKey.AttemptAutoSubmittedKey(testID.String(), userID),
		}
		won, err := claimScript.Run(ctx, s.rdb, keys, member, int(autoSubmittedTTL.Seconds())).Int()
		if err != nil {
			return claimed, fmt.Errorf("claim %s: %w", member, err)
		}
		if won != 1 {
			continue
		}

		closed, err := s.collect(ctx, userID, testID)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, *closed)
	}
	return claimed, nil
}

// collect reads and deletes the attempt's start time and answers.
func (s *AttemptService) collect(ctx context.Context, userID int, testID uuid.UUID) (*model.ClosedAttempt, error) {
	tid := testID.String()
	startKey := config.CacheKey.AttemptStartKey(tid, userID)
	answersKey := config.CacheKey.AttemptAnswersKey(tid, userID)

	pipe := s.rdb.TxPipeline()
	startCmd := pipe.Get(ctx, startKey)
	answersCmd := pipe.HGetAll(ctx, answersKey)
	pipe.Del(ctx, startKey, answersKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("collect attempt: %w", err)
	}

	closed := &model.ClosedAttempt{
		UserID:  userID,
		TestID:  testID,
		Answers: answersCmd.Val(),
	}
	if startUnix, err := startCmd.Int64(); err == nil {
		closed.StartedAt = time.Unix(startUnix, 0)
	}
	return closed, nil
}

func parseAttemptMember(member string) (int, uuid.UUID, error) {
	userPart, testPart, ok := strings.Cut(member, ":")
	if !ok {
		return 0, uuid.Nil, fmt.Errorf("malformed member %q", member)
	}
	userID, err := strconv.Atoi(userPart)
	if err != nil {
		return 0, uuid.Nil, err
	}
	testID, err := uuid.Parse(testPart)
	if err != nil {
		return 0, uuid.Nil, err
	}
	return userID, testID, nil
}
