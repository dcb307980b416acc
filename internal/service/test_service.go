package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/config"
	"github.com/stemsi/testhub-backend/internal/model"
)

// TestService handles the test catalogue and caches full test definitions in Redis.
type TestService struct {
	store    TestStore
	rdb      *redis.Client
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(store TestStore, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *TestService {
	return &TestService{
		store:    store,
		rdb:      rdb,
		cacheTTL: cfg.TestCacheTTL,
		log:      log.With().Str("component", "test_service").Logger(),
	}
}

// List returns the catalogue, optionally filtered by difficulty and age group.
func (s *TestService) List(ctx context.Context, filter model.TestFilter) ([]model.Test, error) {
	return s.store.List(ctx, filter)
}

// Load returns a test with its questions, reading through the Redis cache.
// Cache failures are logged and fall back to PostgreSQL.
func (s *TestService) Load(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	key := config.CacheKey.TestDefinitionKey(id.String())

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var t model.Test
		if err := sonic.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
		s.log.Warn().Str("test_id", id.String()).Msg("Corrupt cached test definition, reloading")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Test cache read failed")
	}

	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := sonic.Marshal(t); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Test cache write failed")
		}
	}
	return t, nil
}

// Create validates and stores a new test.
func (s *TestService) Create(ctx context.Context, creatorID int, req model.TestRequest) (*model.Test, error) {
	t, err := buildTest(req)
	if err != nil {
		return nil, err
	}
	if creatorID > 0 {
		t.CreatedBy = &creatorID
	}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.log.Info().Str("test_id", t.ID.String()).Int("questions", len(t.Questions)).Msg("Test created")
	return t, nil
}

// Update replaces a test's attributes and its whole question list.
func (s *TestService) Update(ctx context.Context, id uuid.UUID, req model.TestRequest) (*model.Test, error) {
	t, err := buildTest(req)
	if err != nil {
		return nil, err
	}
	t.ID = id

	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	s.log.Info().Str("test_id", id.String()).Msg("Test updated")
	return t, nil
}

// Delete removes a test and all of its results.
func (s *TestService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)

	s.log.Info().Str("test_id", id.String()).Msg("Test deleted")
	return nil
}

func (s *TestService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.TestDefinitionKey(id.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Test cache invalidation failed")
	}
}

// buildTest converts a request into a Test, checking that every correct
// option appears verbatim among its question's options.
func buildTest(req model.TestRequest) (*model.Test, error) {
	if len(req.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	t := &model.Test{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Difficulty:      model.Difficulty(req.Difficulty),
		AgeGroup:        model.AgeGroup(req.AgeGroup),
		Questions:       make([]model.Question, 0, len(req.Questions)),
	}

	for i, in := range req.Questions {
		if !in.HasOption(in.CorrectOption) {
			return nil, fmt.Errorf("question %d: %w", i+1, ErrInvalidTest)
		}
		points := in.Points
		if points == 0 {
			points = 1
		}
		t.Questions = append(t.Questions, model.Question{
			QuestionText:  in.QuestionText,
			QuestionType:  model.QuestionTypeMultipleChoice,
			Options:       in.Options,
			CorrectOption: in.CorrectOption,
			Points:        points,
			OrderNum:      i,
		})
	}
	t.QuestionCount = len(t.Questions)
	return t, nil
}
