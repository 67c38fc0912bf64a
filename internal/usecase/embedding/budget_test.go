package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
)

type memBudgetStore struct {
	mu      sync.Mutex
	values  map[string]int64
	getErr  error
	incrErr error
}

func newMemBudgetStore() *memBudgetStore { return &memBudgetStore{values: map[string]int64{}} }

func (m *memBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return m.incrErr
	}
	m.values[key] += val
	return nil
}

func (m *memBudgetStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.values[key], nil
}

// fakeClock is settable from tests; the tracker reads it under its own lock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func newTestTracker(daily, monthly int64, action BudgetAction, clock *fakeClock) *BudgetTracker {
	bt := NewBudgetTracker("gemini", daily, monthly, action, zap.NewNop())
	bt.now = clock.Now
	bt.resetClock()
	return bt
}

func TestBudgetTracker_Check(t *testing.T) {
	tests := []struct {
		name     string
		daily    int64
		monthly  int64
		action   BudgetAction
		recorded int64
		wantErr  bool
	}{
		{"below limit", 100, 0, BudgetActionReject, 99, false},
		{"daily reject", 100, 0, BudgetActionReject, 100, true},
		{"monthly reject", 0, 500, BudgetActionReject, 500, true},
		{"warn allows", 100, 0, BudgetActionWarn, 200, false},
		{"unlimited", 0, 0, BudgetActionReject, 1 << 40, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
			bt := newTestTracker(tc.daily, tc.monthly, tc.action, clock)
			bt.Record(tc.recorded)

			err := bt.Check(context.Background())
			if tc.wantErr != (err != nil) {
				t.Fatalf("Check() = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr && !errors.Is(err, domain.ErrTokenBudgetExceeded) {
				t.Errorf("expected ErrTokenBudgetExceeded, got %v", err)
			}
		})
	}
}

func TestBudgetTracker_Remaining(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	bt := newTestTracker(1000, 10000, BudgetActionWarn, clock)
	bt.Record(300)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("daily remaining = %d, want 700", got)
	}
	if got := bt.RemainingMonthly(); got != 9700 {
		t.Errorf("monthly remaining = %d, want 9700", got)
	}

	bt.Record(5000)
	if got := bt.RemainingDaily(); got != 0 {
		t.Errorf("overspent daily remaining = %d, want 0", got)
	}

	unlimited := newTestTracker(0, 0, BudgetActionWarn, clock)
	if unlimited.RemainingDaily() != -1 || unlimited.RemainingMonthly() != -1 {
		t.Error("expected -1 for unlimited budgets")
	}
}

func TestBudgetTracker_RollsOver(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 31, 23, 59, 0, 0, time.UTC)}
	bt := newTestTracker(100, 1000, BudgetActionReject, clock)
	bt.Record(100)

	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected daily limit to be reached")
	}

	clock.Set(time.Date(2026, 11, 1, 0, 1, 0, 0, time.UTC))
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected fresh budget after midnight, got %v", err)
	}
	if bt.DailyUsed() != 0 || bt.MonthlyUsed() != 0 {
		t.Errorf("counters not reset: daily=%d monthly=%d", bt.DailyUsed(), bt.MonthlyUsed())
	}
}

func TestBudgetTracker_WithStore(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	store := newMemBudgetStore()
	store.values["docqa:budget:gemini:daily:2026-10-15"] = 40
	store.values["docqa:budget:gemini:monthly:2026-10"] = 400

	bt := newTestTracker(100, 1000, BudgetActionReject, clock).WithStore(context.Background(), store)
	if bt.DailyUsed() != 40 || bt.MonthlyUsed() != 400 {
		t.Fatalf("loaded daily=%d monthly=%d", bt.DailyUsed(), bt.MonthlyUsed())
	}

	bt.Record(2)
	if store.values["docqa:budget:gemini:daily:2026-10-15"] != 42 {
		t.Errorf("daily counter = %d", store.values["docqa:budget:gemini:daily:2026-10-15"])
	}
	if store.values["docqa:budget:gemini:monthly:2026-10"] != 402 {
		t.Errorf("monthly counter = %d", store.values["docqa:budget:gemini:monthly:2026-10"])
	}
}

func TestBudgetTracker_StoreErrorsAreNotFatal(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	store := newMemBudgetStore()
	store.getErr = errors.New("down")
	store.incrErr = errors.New("down")

	bt := newTestTracker(100, 0, BudgetActionReject, clock).WithStore(context.Background(), store)
	bt.Record(10)

	if bt.DailyUsed() != 10 {
		t.Errorf("in-memory counter must still advance, got %d", bt.DailyUsed())
	}
}

func TestBudgetTracker_ConcurrentRecord(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	bt := newTestTracker(0, 0, BudgetActionWarn, clock)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bt.Record(2)
		}()
	}
	wg.Wait()

	if bt.DailyUsed() != 100 {
		t.Errorf("daily used = %d, want 100", bt.DailyUsed())
	}
}

func TestInstrumentedEmbedder_BudgetRejects(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	bt := newTestTracker(10, 0, BudgetActionReject, clock)
	inner := &mockEmbedder{result: domain.EmbeddingResult{TotalTokens: 4}}
	p := NewInstrumentedEmbedder(inner, "gemini", "m", 2, bt, zap.NewNop())

	// 2+2 texts at 4 tokens each: first sub-batch spends 8, second spends 16 in total.
	if _, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c", "d"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bt.DailyUsed() != 16 {
		t.Errorf("recorded %d tokens, want 16", bt.DailyUsed())
	}

	_, err := p.Embed(context.Background(), "e")
	if !errors.Is(err, domain.ErrTokenBudgetExceeded) {
		t.Fatalf("expected budget error, got %v", err)
	}
}

func TestInstrumentedEmbedder_BudgetStopsBetweenSubBatches(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	bt := newTestTracker(5, 0, BudgetActionReject, clock)
	inner := &mockEmbedder{result: domain.EmbeddingResult{TotalTokens: 3}}
	p := NewInstrumentedEmbedder(inner, "gemini", "m", 2, bt, zap.NewNop())

	_, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c", "d"})
	if !errors.Is(err, domain.ErrTokenBudgetExceeded) {
		t.Fatalf("expected budget error, got %v", err)
	}
	if len(inner.batchSizes) != 1 {
		t.Errorf("expected one provider call before the budget stopped ingestion, got %v", inner.batchSizes)
	}
}
