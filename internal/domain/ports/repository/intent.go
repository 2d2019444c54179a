package repository

import (
	"context"

	"edu-storefront/internal/domain/model"
)

// IntentRepository holds the plan a visitor picked before signing in.
type IntentRepository interface {
	Save(ctx context.Context, visitorKey string, intent *model.PendingIntent) error
	// Take returns and clears the stored intent in one step.
	// It returns domain.ErrNotFound when nothing is stored.
	Take(ctx context.Context, visitorKey string) (*model.PendingIntent, error)
}
