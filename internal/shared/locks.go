package shared

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ItemLockKey builds redis keys for per-item reservation critical sections.
func ItemLockKey(itemID int64) string {
	return fmt.Sprintf("reservation:item:%d:lock", itemID)
}

// CashboxLockKey builds redis keys for per-cashbox writer sections.
func CashboxLockKey(cashboxID int64) string {
	return fmt.Sprintf("cashbox:%d:lock", cashboxID)
}

// ErrLockNotAcquired indicates the mutex is held by another writer.
var ErrLockNotAcquired = errors.New("lock not acquired")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Mutex is a redis-backed lock used to serialise writers on a single resource.
type Mutex struct {
	client  *redis.Client
	ttl     time.Duration
	retries int
	backoff time.Duration
}

// NewMutex constructs a Mutex with sane defaults for short critical sections.
func NewMutex(client *redis.Client) *Mutex {
	return &Mutex{client: client, ttl: 10 * time.Second, retries: 20, backoff: 25 * time.Millisecond}
}

// Acquire takes the named lock and returns a release function.
func (m *Mutex) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	for attempt := 0; attempt <= m.retries; attempt++ {
		ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("shared: acquire lock %s: %w", key, err)
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, m.client, []string{key}, token).Err()
			}
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.backoff):
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
}

// AcquireAll takes locks for every key in deterministic order so concurrent
// multi-item commits cannot deadlock against each other.
func (m *Mutex) AcquireAll(ctx context.Context, keys []string) (func(), error) {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	releases := make([]func(), 0, len(sorted))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range sorted {
		release, err := m.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
