package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/config"
	"github.com/stemsi/testhub-backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:    "test-secret",
		JWTExpiry:    time.Hour,
		BcryptCost:   bcrypt.MinCost,
		TestCacheTTL: time.Minute,
		AttemptGrace: 10 * time.Second,
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// fakeClock is a settable time source shared by services under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ─── Test store ─────────────────────────────────────────────────────

type fakeTestStore struct {
	mu    sync.Mutex
	tests map[uuid.UUID]model.Test
	gets  int
}

func newFakeTestStore() *fakeTestStore {
	return &fakeTestStore{tests: make(map[uuid.UUID]model.Test)}
}

// add stores a test with one question per correct option and returns it.
func (s *fakeTestStore) add(durationMinutes int, correct ...string) *model.Test {
	t := model.Test{
		ID:              uuid.New(),
		Title:           "Sample",
		DurationMinutes: durationMinutes,
		Difficulty:      model.DifficultyBeginner,
		AgeGroup:        model.AgeGroupKids10To12,
	}
	for i, c := range correct {
		t.Questions = append(t.Questions, model.Question{
			ID:            uuid.New(),
			TestID:        t.ID,
			QuestionText:  "q",
			QuestionType:  model.QuestionTypeMultipleChoice,
			Options:       []string{c, c + "-wrong"},
			CorrectOption: c,
			Points:        1,
			OrderNum:      i,
		})
	}
	t.QuestionCount = len(t.Questions)

	s.mu.Lock()
	s.tests[t.ID] = t
	s.mu.Unlock()
	return &t
}

func (s *fakeTestStore) List(_ context.Context, filter model.TestFilter) ([]model.Test, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Test{}
	for _, t := range s.tests {
		if filter.Difficulty != "" && string(t.Difficulty) != filter.Difficulty {
			continue
		}
		if filter.AgeGroup != "" && string(t.AgeGroup) != filter.AgeGroup {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeTestStore) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	t, ok := s.tests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *fakeTestStore) Create(_ context.Context, t *model.Test) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.New()
	for i := range t.Questions {
		t.Questions[i].ID = uuid.New()
		t.Questions[i].TestID = t.ID
	}
	s.tests[t.ID] = *t
	return nil
}

func (s *fakeTestStore) Update(_ context.Context, t *model.Test) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tests[t.ID]; !ok {
		return ErrNotFound
	}
	for i := range t.Questions {
		t.Questions[i].ID = uuid.New()
		t.Questions[i].TestID = t.ID
	}
	s.tests[t.ID] = *t
	return nil
}

func (s *fakeTestStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tests[id]; !ok {
		return ErrNotFound
	}
	delete(s.tests, id)
	return nil
}

// ─── Result store ───────────────────────────────────────────────────

type fakeResultStore struct {
	mu        sync.Mutex
	results   []model.TestResult
	createErr error
}

func (s *fakeResultStore) Create(_ context.Context, res *model.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	res.ID = uuid.New()
	res.CreatedAt = time.Now()
	s.results = append(s.results, *res)
	return nil
}

func (s *fakeResultStore) GetByID(_ context.Context, id uuid.UUID) (*model.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeResultStore) ListByUser(_ context.Context, userID int) ([]model.TestResultWithTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.TestResultWithTest{}
	for _, r := range s.results {
		if r.UserID == userID {
			out = append(out, model.TestResultWithTest{TestResult: r})
		}
	}
	return out, nil
}

func (s *fakeResultStore) ListByTestPaginated(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.TestResultWithUser, int, error) {
	all, _ := s.ListAllByTest(ctx, testID)
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *fakeResultStore) ListAllByTest(_ context.Context, testID uuid.UUID) ([]model.TestResultWithUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.TestResultWithUser{}
	for _, r := range s.results {
		if r.TestID == testID {
			out = append(out, model.TestResultWithUser{TestResult: r, User: model.UserSummary{ID: r.UserID}})
		}
	}
	return out, nil
}

func (s *fakeResultStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.results {
		if r.ID == id {
			s.results = append(s.results[:i], s.results[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeResultStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// ─── User store ─────────────────────────────────────────────────────

type fakeUserStore struct {
	mu    sync.Mutex
	users map[int]model.User
	next  int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int]model.User)}
}

func (s *fakeUserStore) GetByID(_ context.Context, id int) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if u := s.users[id]; u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeUserStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	s.next++
	u.ID = s.next
	s.users[u.ID] = *u
	return nil
}

func (s *fakeUserStore) Update(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	s.users[u.ID] = *u
	return nil
}

var nopLog = zerolog.Nop()
