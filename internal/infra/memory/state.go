package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/domain/ports/repository"
)

var (
	_ repository.IntentRepository = (*IntentRepo)(nil)
	_ adapter.CheckoutGuard       = (*Guard)(nil)
	_ adapter.RateLimiter         = (*RateLimiter)(nil)
)

type expiring[T any] struct {
	val T
	exp time.Time
}

// IntentRepo stores pending intents with a TTL.
type IntentRepo struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]expiring[model.PendingIntent]
	now func() time.Time
}

func NewIntentRepo(ttl time.Duration) *IntentRepo {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &IntentRepo{ttl: ttl, m: map[string]expiring[model.PendingIntent]{}, now: time.Now}
}

func (r *IntentRepo) Save(ctx context.Context, visitorKey string, intent *model.PendingIntent) error {
	if visitorKey == "" || intent == nil {
		return domain.Validationf("visitor key and intent are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[visitorKey] = expiring[model.PendingIntent]{val: *intent, exp: r.now().Add(r.ttl)}
	return nil
}

func (r *IntentRepo) Take(ctx context.Context, visitorKey string) (*model.PendingIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[visitorKey]
	delete(r.m, visitorKey)
	if !ok || r.now().After(e.exp) {
		return nil, domain.ErrNotFound
	}
	out := e.val
	return &out, nil
}

// Sweep removes intents past their TTL that were never taken.
func (r *IntentRepo) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for k, e := range r.m {
		if now.After(e.exp) {
			delete(r.m, k)
			n++
		}
	}
	return n
}

func (r *IntentRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Guard is a single-process CheckoutGuard.
type Guard struct {
	mu    sync.Mutex
	locks map[string]expiring[string]
	now   func() time.Time
}

func NewGuard() *Guard {
	return &Guard{locks: map[string]expiring[string]{}, now: time.Now}
}

func (g *Guard) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.locks[key]; ok && g.now().Before(cur.exp) {
		return "", domain.ErrCheckoutInFlight
	}
	token := uuid.NewString()
	g.locks[key] = expiring[string]{val: token, exp: g.now().Add(ttl)}
	return token, nil
}

func (g *Guard) Unlock(ctx context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.locks[key]; ok && cur.val == token {
		delete(g.locks, key)
	}
	return nil
}

// Sweep removes locks whose TTL elapsed without an Unlock.
func (g *Guard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	n := 0
	for k, cur := range g.locks {
		if !now.Before(cur.exp) {
			delete(g.locks, k)
			n++
		}
	}
	return n
}

// RateLimiter keeps one token bucket per key: limit requests, refilled
// evenly over window. Idle buckets are dropped by Sweep.
type RateLimiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{m: map[string]*bucket{}, now: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, domain.Validationf("rate limit %d per %s is not usable", limit, window)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	b, ok := r.m[key]
	if !ok || b.limit != limit || b.window != window {
		b = &bucket{
			lim:    rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:  limit,
			window: window,
		}
		r.m[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1), nil
}

// Sweep drops buckets untouched for a whole window; they have refilled, so
// forgetting them changes no decision.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for k, b := range r.m {
		if now.Sub(b.lastSeen) >= b.window {
			delete(r.m, k)
			n++
		}
	}
	return n
}

// Len reports the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
