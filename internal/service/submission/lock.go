package submission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// MemoryLocker keeps submission locks in process memory.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]uint64
	next uint64
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]uint64)}
}

// Acquire implements Locker.
func (l *MemoryLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, inFlight(key)
	}
	l.next++
	token := l.next
	l.held[key] = token

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == token {
				delete(l.held, key)
			}
		})
	}, nil
}

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-taken by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// releaseTimeout bounds the release round trip, which runs even after
// the caller's context is done.
const releaseTimeout = 5 * time.Second

// RedisLocker keeps submission locks in Redis so several processes share
// them. Locks expire after ttl in case a holder dies.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a locker on client. logger may be nil.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, prefix: "reviewchain:submission:", ttl: ttl, logger: logger}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, reviewerr.WithCause(reviewerr.ErrNetworkError, fmt.Errorf("redis SetNX failed: %w", err))
	}
	if !ok {
		return nil, inFlight(key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{fullKey}, token).Err(); err != nil {
				l.logger.Warn("releasing submission lock", zap.String("key", fullKey), zap.Error(err))
			}
		})
	}, nil
}

func inFlight(key string) error {
	return reviewerr.WithDetails(reviewerr.ErrSubmissionInFlight, map[string]string{"reviewer": key})
}
