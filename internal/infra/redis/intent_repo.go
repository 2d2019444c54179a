package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.IntentRepository = (*IntentRepo)(nil)

// IntentRepo keeps the plan an anonymous visitor picked until they sign in.
type IntentRepo struct {
	client Client
	ttl    time.Duration
}

func NewIntentRepo(client Client, ttl time.Duration) *IntentRepo {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &IntentRepo{client: client, ttl: ttl}
}

func (s *IntentRepo) key(visitorKey string) string {
	return "checkout_intent:" + visitorKey
}

func (s *IntentRepo) Save(ctx context.Context, visitorKey string, intent *model.PendingIntent) error {
	if visitorKey == "" || intent == nil {
		return domain.Validationf("visitor key and intent are required")
	}
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(visitorKey), data, s.ttl)
}

func (s *IntentRepo) Take(ctx context.Context, visitorKey string) (*model.PendingIntent, error) {
	data, err := s.client.GetDel(ctx, s.key(visitorKey))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var intent model.PendingIntent
	if err := json.Unmarshal([]byte(data), &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}
