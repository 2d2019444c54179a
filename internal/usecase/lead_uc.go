package usecase

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/domain/ports/repository"
	"edu-storefront/internal/infra/logging"
	"edu-storefront/internal/infra/metrics"
)

var _ LeadUseCase = (*leadUC)(nil)

// LeadUseCase stores submissions of the public contact, newsletter and
// collaboration forms.
type LeadUseCase interface {
	Submit(ctx context.Context, lead *model.Lead) (string, error)
}

type leadUC struct {
	docs    repository.DocumentStore
	limiter adapter.RateLimiter
	limit   int
	window  time.Duration
	log     *zerolog.Logger
	now     func() time.Time
}

func NewLeadUseCase(docs repository.DocumentStore, limiter adapter.RateLimiter, limit int, window time.Duration, logger *zerolog.Logger) *leadUC {
	return &leadUC{docs: docs, limiter: limiter, limit: limit, window: window, log: logger, now: time.Now}
}

func (u *leadUC) Submit(ctx context.Context, lead *model.Lead) (string, error) {
	if lead == nil {
		return "", domain.Validationf("empty submission")
	}
	kind := string(lead.Kind)
	if err := validateLead(lead); err != nil {
		metrics.IncLead(kind, "invalid")
		return "", err
	}

	if lead.SourceIP != "" && u.limiter != nil {
		ok, err := u.limiter.Allow(ctx, "lead:"+kind+":"+lead.SourceIP, u.limit, u.window)
		switch {
		case err != nil:
			// fail open; a limiter outage must not drop submissions
			logging.With(ctx, u.log).Warn().Err(err).Msg("lead rate limiter unavailable")
		case !ok:
			metrics.IncLead(kind, "limited")
			return "", domain.ErrRateLimited
		}
	}

	doc := repository.Document{
		"email":     lead.Email,
		"createdAt": u.now().UTC(),
		"source_ip": lead.SourceIP,
	}
	switch lead.Kind {
	case model.LeadContact:
		doc["name"] = lead.Name
		doc["phone"] = lead.Phone
		doc["message"] = lead.Message
	case model.LeadCollaboration:
		doc["name"] = lead.Name
		doc["organization"] = lead.Organization
		doc["proposal"] = lead.Message
	}

	id, err := u.docs.Create(ctx, lead.Kind.Collection(), doc)
	if err != nil {
		metrics.IncLead(kind, "error")
		logging.With(ctx, u.log).Error().Err(err).Str("kind", kind).Msg("store lead")
		return "", domain.NewRemoteError("leads.create", err)
	}
	metrics.IncLead(kind, "accepted")
	return id, nil
}

func validateLead(l *model.Lead) error {
	if l.Kind.Collection() == "" {
		return domain.Validationf("unknown form %q", l.Kind)
	}
	l.Email = strings.TrimSpace(l.Email)
	l.Name = strings.TrimSpace(l.Name)
	l.Message = strings.TrimSpace(l.Message)
	l.Organization = strings.TrimSpace(l.Organization)
	l.Phone = strings.TrimSpace(l.Phone)

	addr, err := mail.ParseAddress(l.Email)
	if err != nil || addr.Address != l.Email {
		return domain.Validationf("a valid email address is required")
	}
	switch l.Kind {
	case model.LeadContact:
		if l.Name == "" || l.Message == "" {
			return domain.Validationf("name and message are required")
		}
	case model.LeadCollaboration:
		if l.Name == "" || l.Message == "" {
			return domain.Validationf("name and proposal are required")
		}
	}
	if len(l.Message) > 5000 {
		return domain.Validationf("message is too long")
	}
	return nil
}
