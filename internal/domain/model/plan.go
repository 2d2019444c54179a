package model

import (
	"edu-storefront/internal/domain"

	"github.com/shopspring/decimal"
)

type PlanType string

const (
	PlanBasic   PlanType = "basic"
	PlanPremium PlanType = "premium"
)

type BillingPeriod string

const (
	BillingAnnual   BillingPeriod = "annual"
	BillingLifetime BillingPeriod = "lifetime"
)

// CurrencyINR is the only currency the storefront sells in.
const CurrencyINR = "INR"

// Plan is an immutable catalog entry. OriginalPrice is in paise.
type Plan struct {
	Type          PlanType      `json:"plan_type"`
	Name          string        `json:"name"`
	OriginalPrice int64         `json:"original_price"`
	BillingPeriod BillingPeriod `json:"billing_period"`
}

var catalog = []Plan{
	{Type: PlanBasic, Name: "Basic", OriginalPrice: 180000, BillingPeriod: BillingAnnual},
	{Type: PlanPremium, Name: "Premium", OriginalPrice: 500000, BillingPeriod: BillingLifetime},
}

// Catalog returns a copy of the purchasable plans.
func Catalog() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// LookupPlan returns the catalog entry for t.
func LookupPlan(t PlanType) (Plan, error) {
	for _, p := range catalog {
		if p.Type == t {
			return p, nil
		}
	}
	return Plan{}, domain.Validationf("unknown plan type %q", t)
}

// SelectedPlan is the transient per-checkout view of a chosen plan.
type SelectedPlan struct {
	PlanType        PlanType `json:"plan_type"`
	OriginalPrice   int64    `json:"original_price"`
	DiscountedPrice *int64   `json:"discounted_price,omitempty"`
}

func (s SelectedPlan) IsZero() bool { return s.PlanType == "" }

// FinalPrice is the amount that will be charged.
func (s SelectedPlan) FinalPrice() int64 {
	if s.DiscountedPrice != nil {
		return *s.DiscountedPrice
	}
	return s.OriginalPrice
}

// DiscountedPrice applies percent to original and rounds half up to whole
// paise. percent must be within 0..100.
func DiscountedPrice(original int64, percent int) (int64, error) {
	if percent < 0 || percent > 100 {
		return 0, domain.Validationf("discount percent %d out of range", percent)
	}
	if original < 0 {
		return 0, domain.Validationf("negative price %d", original)
	}
	hundred := decimal.NewFromInt(100)
	v := decimal.NewFromInt(original).
		Mul(hundred.Sub(decimal.NewFromInt(int64(percent)))).
		Div(hundred).
		Round(0)
	return v.IntPart(), nil
}
