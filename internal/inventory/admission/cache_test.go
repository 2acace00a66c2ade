package admission

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeStore mirrors the compare-and-decrement semantics of the Lua script
// in plain Go so the cache logic can be tested without a Redis server.
type fakeStore struct {
	values     map[string]int64
	evalErr    error
	setTTLs    map[string]time.Duration
	expireTTLs map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:     map[string]int64{},
		setTTLs:    map[string]time.Duration{},
		expireTTLs: map[string]time.Duration{},
	}
}

func (f *fakeStore) Eval(_ context.Context, _ string, keys []string, args ...any) (any, error) {
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	stock, ok := f.values[keys[0]]
	if !ok {
		return int64(-1), nil
	}
	requested := int64(args[0].(int))
	if stock >= requested {
		f.values[keys[0]] = stock - requested
		return int64(1), nil
	}
	return int64(0), nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	parsed, err := strconv.ParseInt(toString(value), 10, 64)
	if err != nil {
		return err
	}
	f.values[key] = parsed
	f.setTTLs[key] = ttl
	return nil
}

func (f *fakeStore) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	f.values[key] += delta
	return f.values[key], nil
}

func (f *fakeStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	_, ok := f.values[key]
	if ok {
		f.expireTTLs[key] = ttl
	}
	return ok, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeStore) AdmissionKey(itemID string) string {
	return "sr:admission:" + itemID
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func TestTryAdmitDecrementsCachedStock(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cache := NewCache(store, time.Minute, nil)
	ctx := context.Background()
	itemID := uuid.New()

	if err := cache.Refresh(ctx, itemID, 3); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	for i := 0; i < 3; i++ {
		admitted, decremented, err := cache.TryAdmit(ctx, itemID, 1)
		if err != nil {
			t.Fatalf("try admit %d: %v", i, err)
		}
		if !admitted || !decremented {
			t.Fatalf("expected admission %d to pass and decrement", i)
		}
	}

	admitted, _, err := cache.TryAdmit(ctx, itemID, 1)
	if err != nil {
		t.Fatalf("try admit after depletion: %v", err)
	}
	if admitted {
		t.Fatalf("expected depleted cache to deny")
	}
}

func TestTryAdmitRejectsPartialQuantity(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cache := NewCache(store, time.Minute, nil)
	ctx := context.Background()
	itemID := uuid.New()

	if err := cache.Refresh(ctx, itemID, 2); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	admitted, _, err := cache.TryAdmit(ctx, itemID, 3)
	if err != nil {
		t.Fatalf("try admit: %v", err)
	}
	if admitted {
		t.Fatalf("expected denial when requested exceeds cached stock")
	}
	if store.values[store.AdmissionKey(itemID.String())] != 2 {
		t.Fatalf("denied admission must not decrement, got %d",
			store.values[store.AdmissionKey(itemID.String())])
	}
}

func TestTryAdmitCacheMissAdmitsWithoutDecrement(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cache := NewCache(store, time.Minute, nil)
	itemID := uuid.New()

	admitted, decremented, err := cache.TryAdmit(context.Background(), itemID, 1)
	if err != nil {
		t.Fatalf("try admit: %v", err)
	}
	if !admitted {
		t.Fatalf("cache miss must admit and defer to the ledger")
	}
	if decremented {
		t.Fatalf("cache miss must not report a decrement")
	}
	if _, ok := store.values[store.AdmissionKey(itemID.String())]; ok {
		t.Fatalf("cache miss must not create an entry")
	}
}

func TestTryAdmitPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.evalErr = errors.New("connection refused")
	cache := NewCache(store, time.Minute, nil)

	if _, _, err := cache.TryAdmit(context.Background(), uuid.New(), 1); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

func TestCompensateRestoresQuantity(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cache := NewCache(store, time.Minute, nil)
	ctx := context.Background()
	itemID := uuid.New()

	if err := cache.Refresh(ctx, itemID, 5); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, _, err := cache.TryAdmit(ctx, itemID, 5); err != nil {
		t.Fatalf("try admit: %v", err)
	}
	if err := cache.Compensate(ctx, itemID, 5); err != nil {
		t.Fatalf("compensate: %v", err)
	}

	admitted, _, err := cache.TryAdmit(ctx, itemID, 5)
	if err != nil {
		t.Fatalf("try admit after compensation: %v", err)
	}
	if !admitted {
		t.Fatalf("compensated quantity must be admittable again")
	}
}

func TestCompensateReArmsTTL(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cache := NewCache(store, 2*time.Minute, nil)
	ctx := context.Background()
	itemID := uuid.New()
	key := store.AdmissionKey(itemID.String())

	if err := cache.Refresh(ctx, itemID, 4); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, _, err := cache.TryAdmit(ctx, itemID, 4); err != nil {
		t.Fatalf("try admit: %v", err)
	}
	if err := cache.Compensate(ctx, itemID, 4); err != nil {
		t.Fatalf("compensate: %v", err)
	}
	if got := store.expireTTLs[key]; got != 2*time.Minute {
		t.Fatalf("expected compensation to set ttl 2m, got %s", got)
	}
}

func TestRefreshAppliesTTL(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cache := NewCache(store, 90*time.Second, nil)
	itemID := uuid.New()

	if err := cache.Refresh(context.Background(), itemID, 7); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := store.setTTLs[store.AdmissionKey(itemID.String())]; got != 90*time.Second {
		t.Fatalf("expected ttl 90s, got %s", got)
	}
}

func TestInvalidateDropsEntry(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cache := NewCache(store, time.Minute, nil)
	ctx := context.Background()
	itemID := uuid.New()

	if err := cache.Refresh(ctx, itemID, 1); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := cache.Invalidate(ctx, itemID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	admitted, decremented, err := cache.TryAdmit(ctx, itemID, 1)
	if err != nil {
		t.Fatalf("try admit: %v", err)
	}
	if !admitted || decremented {
		t.Fatalf("invalidated entry must behave as a cache miss")
	}
}
