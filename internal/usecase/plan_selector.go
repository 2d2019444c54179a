package usecase

import (
	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
)

// PlanSelector holds the plan chosen in one checkout and any discount
// applied to it. It is not safe for concurrent use; the owning checkout
// session serializes access.
type PlanSelector struct {
	selected model.SelectedPlan
	percent  *int
}

// SelectPlan picks planType from the catalog, keeping an active discount.
func (p *PlanSelector) SelectPlan(planType model.PlanType) (model.SelectedPlan, error) {
	plan, err := model.LookupPlan(planType)
	if err != nil {
		return p.selected, err
	}
	sel := model.SelectedPlan{PlanType: plan.Type, OriginalPrice: plan.OriginalPrice}
	if p.percent != nil {
		d, err := model.DiscountedPrice(sel.OriginalPrice, *p.percent)
		if err != nil {
			return p.selected, err
		}
		sel.DiscountedPrice = &d
	}
	p.selected = sel
	return sel, nil
}

// ApplyDiscount recomputes the price of the selected plan at percent off.
func (p *PlanSelector) ApplyDiscount(percent int) (model.SelectedPlan, error) {
	if p.selected.IsZero() {
		return p.selected, domain.ErrInvalidState
	}
	d, err := model.DiscountedPrice(p.selected.OriginalPrice, percent)
	if err != nil {
		return p.selected, err
	}
	p.percent = &percent
	p.selected.DiscountedPrice = &d
	return p.selected, nil
}

// RemoveDiscount clears the discount and returns the undiscounted selection,
// which is the zero value when no plan is selected.
func (p *PlanSelector) RemoveDiscount() model.SelectedPlan {
	p.percent = nil
	p.selected.DiscountedPrice = nil
	return p.selected
}

func (p *PlanSelector) Selected() model.SelectedPlan { return p.selected }

// Percent is the active discount, zero when none.
func (p *PlanSelector) Percent() int {
	if p.percent == nil {
		return 0
	}
	return *p.percent
}

func (p *PlanSelector) HasDiscount() bool { return p.percent != nil }

// Reset discards the selection and the discount.
func (p *PlanSelector) Reset() {
	p.selected = model.SelectedPlan{}
	p.percent = nil
}
