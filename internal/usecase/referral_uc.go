package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/infra/logging"
	"edu-storefront/internal/infra/metrics"
)

var _ ReferralUseCase = (*referralUC)(nil)

type ReferralUseCase interface {
	// Verify checks code with the referral service. An invalid code is a
	// normal result with Error set, not a failure.
	Verify(ctx context.Context, code string, planType model.PlanType) (*model.ReferralVerification, error)
}

type referralUC struct {
	svc adapter.ReferralService
	log *zerolog.Logger
}

func NewReferralUseCase(svc adapter.ReferralService, logger *zerolog.Logger) *referralUC {
	return &referralUC{svc: svc, log: logger}
}

const msgInvalidReferral = "Invalid referral code"

func (u *referralUC) Verify(ctx context.Context, code string, planType model.PlanType) (*model.ReferralVerification, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.Validationf("referral code is required")
	}
	if planType == "" {
		return nil, domain.Validationf("select a plan before applying a referral code")
	}

	res, err := u.svc.Verify(ctx, code)
	if err != nil {
		metrics.IncReferralVerify("error")
		logging.With(ctx, u.log).Warn().Err(err).Msg("referral verification failed")
		return nil, domain.NewRemoteError("referral.verify", err)
	}

	out := &model.ReferralVerification{Code: code, IsValid: res.IsValid}
	switch {
	case !res.IsValid:
		out.Error = res.Message
		if out.Error == "" {
			out.Error = msgInvalidReferral
		}
	case res.DiscountPercent == nil:
		out.IsValid = false
		out.Error = "Referral code carries no discount"
	case *res.DiscountPercent < 0 || *res.DiscountPercent > 100:
		metrics.IncReferralVerify("error")
		return nil, &domain.RemoteError{Op: "referral.verify", Message: "discount out of range"}
	default:
		p := *res.DiscountPercent
		out.DiscountPercent = &p
	}

	if out.IsValid {
		metrics.IncReferralVerify("valid")
	} else {
		metrics.IncReferralVerify("invalid")
	}
	return out, nil
}
