package adapter

import (
	"context"
	"time"

	"edu-storefront/internal/domain/model"
)

// ReferralResult is the remote referral service's answer.
type ReferralResult struct {
	IsValid         bool
	DiscountPercent *int
	Message         string
}

// ReferralService validates referral codes remotely. Transport and HTTP
// failures are returned as *domain.RemoteError.
type ReferralService interface {
	Verify(ctx context.Context, code string) (ReferralResult, error)
}

// IdentityClaims is what the identity provider asserts about a caller.
type IdentityClaims struct {
	UserID string
	Email  string
}

// TokenVerifier validates bearer tokens minted by the identity provider.
type TokenVerifier interface {
	Verify(token string) (*IdentityClaims, error)
}

// EmailVerifier exchanges an email verification token with the identity provider.
type EmailVerifier interface {
	ConfirmEmail(ctx context.Context, oobCode string) (*model.EmailVerification, error)
}

// CheckoutGuard is a per-key in-flight lock with expiry.
// TryLock returns domain.ErrCheckoutInFlight when the key is held.
type CheckoutGuard interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter is a fixed-window counter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
