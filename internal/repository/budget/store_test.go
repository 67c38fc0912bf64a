package budget

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/docqa/internal/db"
)

type expireCall struct {
	key string
	ttl time.Duration
	nx  bool
}

type fakeKV struct {
	values    map[string][]byte
	expires   []expireCall
	getErr    error
	incrErr   error
	expireErr error
}

func newFakeKV() *fakeKV { return &fakeKV{values: map[string][]byte{}} }

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeKV) IncrBy(_ context.Context, key string, val int64) error {
	if f.incrErr != nil {
		return f.incrErr
	}
	cur, _ := strconv.ParseInt(string(f.values[key]), 10, 64)
	f.values[key] = []byte(strconv.FormatInt(cur+val, 10))
	return nil
}

func (f *fakeKV) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	f.expires = append(f.expires, expireCall{key, ttl, nx})
	return f.expireErr
}

func TestStore_IncrByThenGet(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, time.Hour, 2*time.Hour)
	ctx := context.Background()

	for _, n := range []int64{40, 2} {
		if err := s.IncrBy(ctx, "docqa:budget:gemini:daily:2026-10-15", n); err != nil {
			t.Fatalf("IncrBy: %v", err)
		}
	}

	got, err := s.Get(ctx, "docqa:budget:gemini:daily:2026-10-15")
	if err != nil || got != 42 {
		t.Errorf("Get = %d, %v; want 42", got, err)
	}
}

func TestStore_TTLByPeriod(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, time.Hour, 2*time.Hour)
	ctx := context.Background()

	_ = s.IncrBy(ctx, "docqa:budget:gemini:daily:2026-10-15", 1)
	_ = s.IncrBy(ctx, "docqa:budget:gemini:monthly:2026-10", 1)

	if len(kv.expires) != 2 {
		t.Fatalf("expected 2 EXPIRE calls, got %d", len(kv.expires))
	}
	if kv.expires[0].ttl != time.Hour || !kv.expires[0].nx {
		t.Errorf("daily expire = %+v", kv.expires[0])
	}
	if kv.expires[1].ttl != 2*time.Hour || !kv.expires[1].nx {
		t.Errorf("monthly expire = %+v", kv.expires[1])
	}
}

func TestStore_DefaultTTLs(t *testing.T) {
	s := New(newFakeKV(), 0, -1)
	if s.dailyTTL != DefaultDailyTTL || s.monthTTL != DefaultMonthlyTTL {
		t.Errorf("unexpected TTLs %v / %v", s.dailyTTL, s.monthTTL)
	}
}

func TestStore_GetMissingIsZero(t *testing.T) {
	got, err := New(newFakeKV(), 0, 0).Get(context.Background(), "docqa:budget:x:daily:2026-10-15")
	if err != nil || got != 0 {
		t.Errorf("Get = %d, %v; want 0, nil", got, err)
	}
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	kv := newFakeKV()
	kv.incrErr = boom
	if err := New(kv, 0, 0).IncrBy(ctx, "k:daily:x", 1); !errors.Is(err, boom) {
		t.Errorf("IncrBy error = %v", err)
	}

	kv = newFakeKV()
	kv.expireErr = boom
	if err := New(kv, 0, 0).IncrBy(ctx, "k:daily:x", 1); !errors.Is(err, boom) {
		t.Errorf("Expire error = %v", err)
	}

	kv = newFakeKV()
	kv.getErr = boom
	if _, err := New(kv, 0, 0).Get(ctx, "k"); !errors.Is(err, boom) {
		t.Errorf("Get error = %v", err)
	}

	kv = newFakeKV()
	kv.values["k"] = []byte("not-a-number")
	if _, err := New(kv, 0, 0).Get(ctx, "k"); err == nil {
		t.Error("expected parse error")
	}
}
