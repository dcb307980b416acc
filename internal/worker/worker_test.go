package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/config"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/service"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type fakeSubmitter struct {
	mu    sync.Mutex
	err   error
	calls []model.ClosedAttempt
}

func (f *fakeSubmitter) SubmitExpired(_ context.Context, closed model.ClosedAttempt) (*model.TestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, closed)
	if f.err != nil {
		return nil, f.err
	}
	return &model.TestResult{UserID: closed.UserID, TestID: closed.TestID, SubmissionMode: model.SubmissionModeAuto}, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func queued(t *testing.T, mr *miniredis.Miniredis) []model.ClosedAttempt {
	t.Helper()
	if !mr.Exists(config.WorkerKey.AutoSubmitQueue) {
		return nil
	}
	items, err := mr.List(config.WorkerKey.AutoSubmitQueue)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	out := make([]model.ClosedAttempt, len(items))
	for i, raw := range items {
		if err := sonic.Unmarshal([]byte(raw), &out[i]); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return out
}

func sampleAttempt() model.ClosedAttempt {
	return model.ClosedAttempt{
		UserID:  7,
		TestID:  uuid.New(),
		Answers: map[string]string{uuid.NewString(): "Paris"},
	}
}

func TestAutoSubmitWorker_Submits(t *testing.T) {
	mr, rdb := newRedis(t)
	sub := &fakeSubmitter{}
	w := NewAutoSubmitWorker(rdb, sub, zerolog.Nop())
	ctx := context.Background()

	closed := sampleAttempt()
	if err := Enqueue(ctx, rdb, closed); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	w.processNext(ctx)

	if sub.count() != 1 {
		t.Fatalf("submit calls = %d, want 1", sub.count())
	}
	got := sub.calls[0]
	if got.UserID != closed.UserID || got.TestID != closed.TestID || len(got.Answers) != 1 {
		t.Errorf("submitted %+v", got)
	}
	if len(queued(t, mr)) != 0 {
		t.Error("queue not empty")
	}
}

func TestAutoSubmitWorker_RequeuesTransientFailure(t *testing.T) {
	mr, rdb := newRedis(t)
	sub := &fakeSubmitter{err: errors.New("connection reset")}
	w := NewAutoSubmitWorker(rdb, sub, zerolog.Nop())
	ctx := context.Background()

	if err := Enqueue(ctx, rdb, sampleAttempt()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	w.processNext(ctx)

	q := queued(t, mr)
	if len(q) != 1 || q[0].Retries != 1 || len(q[0].Answers) != 1 {
		t.Fatalf("queue = %+v", q)
	}
}

func TestAutoSubmitWorker_GivesUpAfterMaxRetries(t *testing.T) {
	mr, rdb := newRedis(t)
	sub := &fakeSubmitter{err: errors.New("connection reset")}
	w := NewAutoSubmitWorker(rdb, sub, zerolog.Nop())
	ctx := context.Background()

	closed := sampleAttempt()
	closed.Retries = AutoSubmitMaxRetries
	if err := Enqueue(ctx, rdb, closed); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	w.processNext(ctx)

	if len(queued(t, mr)) != 0 {
		t.Error("payload requeued past the retry limit")
	}
}

func TestAutoSubmitWorker_DropsUngradable(t *testing.T) {
	for _, err := range []error{service.ErrNotFound, service.ErrNoQuestions} {
		mr, rdb := newRedis(t)
		w := NewAutoSubmitWorker(rdb, &fakeSubmitter{err: err}, zerolog.Nop())
		ctx := context.Background()

		if err := Enqueue(ctx, rdb, sampleAttempt()); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		w.processNext(ctx)

		if len(queued(t, mr)) != 0 {
			t.Errorf("%v: payload requeued", err)
		}
	}
}

func TestAutoSubmitWorker_IgnoresMalformedPayload(t *testing.T) {
	_, rdb := newRedis(t)
	sub := &fakeSubmitter{}
	w := NewAutoSubmitWorker(rdb, sub, zerolog.Nop())
	ctx := context.Background()

	rdb.RPush(ctx, config.WorkerKey.AutoSubmitQueue, "{broken")
	w.processNext(ctx)

	if sub.count() != 0 {
		t.Error("malformed payload submitted")
	}
}

func TestAutoSubmitWorker_StopsOnCancel(t *testing.T) {
	_, rdb := newRedis(t)
	w := NewAutoSubmitWorker(rdb, &fakeSubmitter{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

type fakeClaimer struct {
	batches [][]model.ClosedAttempt
	err     error
}

func (f *fakeClaimer) ClaimExpired(_ context.Context, _ int64) ([]model.ClosedAttempt, error) {
	if len(f.batches) == 0 {
		return nil, f.err
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func TestExpirySweeper_QueuesClaimedAttempts(t *testing.T) {
	mr, rdb := newRedis(t)
	claimer := &fakeClaimer{batches: [][]model.ClosedAttempt{{sampleAttempt(), sampleAttempt()}}}
	s := NewExpirySweeper(claimer, rdb, nil, 1, zerolog.Nop())

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 || len(queued(t, mr)) != 2 {
		t.Fatalf("claimed %d, queued %d", n, len(queued(t, mr)))
	}
}

func TestExpirySweeper_DrainsFullBatches(t *testing.T) {
	mr, rdb := newRedis(t)
	full := make([]model.ClosedAttempt, SweepBatchSize)
	for i := range full {
		full[i] = sampleAttempt()
	}
	claimer := &fakeClaimer{batches: [][]model.ClosedAttempt{full, {sampleAttempt()}}}
	s := NewExpirySweeper(claimer, rdb, nil, 1, zerolog.Nop())

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != SweepBatchSize+1 || len(queued(t, mr)) != SweepBatchSize+1 {
		t.Fatalf("claimed %d", n)
	}
}

func TestExpirySweeper_FallsBackWhenQueueDown(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	fallback := &fakeSubmitter{}
	claimer := &fakeClaimer{batches: [][]model.ClosedAttempt{{sampleAttempt()}}}
	s := NewExpirySweeper(claimer, rdb, fallback, 1, zerolog.Nop())

	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if fallback.count() != 1 {
		t.Fatalf("inline submits = %d, want 1", fallback.count())
	}
}

func TestExpirySweeper_StartStop(t *testing.T) {
	_, rdb := newRedis(t)
	s := NewExpirySweeper(&fakeClaimer{}, rdb, nil, 1, zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
