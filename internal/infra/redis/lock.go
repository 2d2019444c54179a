package redis

import (
	"context"
	"time"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ adapter.CheckoutGuard = (*Locker)(nil)

// Locker is a CheckoutGuard shared by every replica through Redis.
// A held key fails fast; callers never wait for a checkout to finish.
type Locker struct {
	client Client
}

func NewLocker(c Client) *Locker {
	return &Locker{client: c}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(key), token, ttl)
	if err != nil {
		return "", domain.NewRemoteError("redis.lock", err)
	}
	if !ok {
		return "", domain.ErrCheckoutInFlight
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases key only if token still owns it.
func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.client.RunScript(ctx, luaUnlock, []string{lockKey(key)}, token)
	return err
}

func lockKey(key string) string { return "lock:" + key }
