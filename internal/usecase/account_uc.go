package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/infra/logging"
)

var _ AccountUseCase = (*accountUC)(nil)

type AccountUseCase interface {
	// Authenticate resolves a bearer token to the signed-in user.
	Authenticate(ctx context.Context, token string) (*adapter.IdentityClaims, error)
	// VerifyEmail applies an email verification code from a verification link.
	VerifyEmail(ctx context.Context, oobCode string) (*model.EmailVerification, error)
}

type accountUC struct {
	tokens adapter.TokenVerifier
	emails adapter.EmailVerifier
	log    *zerolog.Logger
	dev    bool
}

func NewAccountUseCase(tokens adapter.TokenVerifier, emails adapter.EmailVerifier, logger *zerolog.Logger, dev bool) *accountUC {
	return &accountUC{tokens: tokens, emails: emails, log: logger, dev: dev}
}

func (u *accountUC) Authenticate(ctx context.Context, token string) (*adapter.IdentityClaims, error) {
	if token == "" {
		return nil, domain.ErrIdentityRequired
	}
	claims, err := u.tokens.Verify(token)
	if err != nil {
		logging.With(ctx, u.log).Debug().Err(err).Msg("bearer token rejected")
		if !errors.Is(err, domain.ErrIdentityRequired) {
			err = errors.Join(domain.ErrIdentityRequired, err)
		}
		return nil, err
	}
	return claims, nil
}

func (u *accountUC) VerifyEmail(ctx context.Context, oobCode string) (*model.EmailVerification, error) {
	if u.emails == nil {
		return nil, domain.ErrDependencyUnavailable
	}
	res, err := u.emails.ConfirmEmail(ctx, oobCode)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("email verification failed")
		return nil, err
	}
	logging.With(ctx, u.log).Info().Str("email", logging.Redact(res.Email, u.dev)).Bool("verified", res.Verified).Msg("email verification applied")
	return res, nil
}
