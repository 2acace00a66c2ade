package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

// tryAdmitScript atomically compares the cached available quantity against
// the requested quantity and decrements it when sufficient.
//
// KEYS[1]: cached available quantity for the item
// ARGV[1]: requested quantity
//
// Returns 1 when admitted, 0 when the cache says sold out, -1 on cache miss.
const tryAdmitScript = `
local stock = redis.call('get', KEYS[1])
if not stock then
    return -1
end
stock = tonumber(stock)
local requested = tonumber(ARGV[1])
if stock >= requested then
    redis.call('decrby', KEYS[1], requested)
    return 1
end
return 0
`

type store interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	AdmissionKey(itemID string) string
}

// Cache is the advisory fast path in front of the reservation ledger. It
// sheds obviously doomed requests during spikes; the ledger row lock remains
// the only authority on stock, so a stale or missing entry only costs a
// database round trip.
type Cache struct {
	store store
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCache builds the admission cache. ttl bounds staleness when refresh
// traffic stops.
func NewCache(store store, ttl time.Duration, logg *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{store: store, ttl: ttl, logg: logg}
}

// TryAdmit atomically checks and decrements the cached quantity. A cache
// miss admits without decrementing anything: the ledger decides, and the
// caller must not compensate what was never held.
func (c *Cache) TryAdmit(ctx context.Context, itemID uuid.UUID, quantity int) (admitted, decremented bool, err error) {
	key := c.store.AdmissionKey(itemID.String())
	result, err := c.store.Eval(ctx, tryAdmitScript, []string{key}, quantity)
	if err != nil {
		return false, false, fmt.Errorf("running admission script: %w", err)
	}
	code, ok := result.(int64)
	if !ok {
		return false, false, fmt.Errorf("unexpected admission script result type %T", result)
	}
	switch code {
	case 1:
		return true, true, nil
	case 0:
		return false, false, nil
	case -1:
		if c.logg != nil {
			c.logg.Debug(c.logg.WithItemID(ctx, itemID.String()), "admission cache miss")
		}
		return true, false, nil
	default:
		return false, false, fmt.Errorf("unknown admission script result %d", code)
	}
}

// Compensate returns a previously decremented quantity to the cache after the
// ledger rejected or replayed the request.
func (c *Cache) Compensate(ctx context.Context, itemID uuid.UUID, quantity int) error {
	key := c.store.AdmissionKey(itemID.String())
	if _, err := c.store.IncrBy(ctx, key, int64(quantity)); err != nil {
		return fmt.Errorf("compensating admission cache: %w", err)
	}
	// IncrBy resurrects an expired entry with no TTL; re-arm it so the value
	// cannot outlive refresh traffic.
	if _, err := c.store.Expire(ctx, key, c.ttl); err != nil {
		return fmt.Errorf("expiring compensated admission entry: %w", err)
	}
	return nil
}

// Refresh overwrites the cached quantity with the authoritative value.
func (c *Cache) Refresh(ctx context.Context, itemID uuid.UUID, available int) error {
	key := c.store.AdmissionKey(itemID.String())
	if err := c.store.Set(ctx, key, available, c.ttl); err != nil {
		return fmt.Errorf("refreshing admission cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry so the next request falls through to
// the ledger.
func (c *Cache) Invalidate(ctx context.Context, itemID uuid.UUID) error {
	key := c.store.AdmissionKey(itemID.String())
	if err := c.store.Del(ctx, key); err != nil {
		return fmt.Errorf("invalidating admission cache: %w", err)
	}
	return nil
}
