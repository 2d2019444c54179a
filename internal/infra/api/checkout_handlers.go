package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/infra/logging"
)

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Data []model.Plan `json:"data"`
	}{Data: s.checkout.Plans()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checkout.Summary(r.Context(), identityFrom(r.Context())))
}

type selectPlanRequest struct {
	PlanType model.PlanType `json:"plan_type"`
}

type deferredResponse struct {
	Deferred bool   `json:"deferred"`
	LoginURL string `json:"login_url,omitempty"`
}

func (s *Server) handleSelectPlan(w http.ResponseWriter, r *http.Request) {
	var req selectPlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.checkout.SelectPlan(r.Context(), identityFrom(r.Context()), req.PlanType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if view.Deferred {
		// anonymous visitors are sent to sign in and come back through /resume
		writeJSON(w, http.StatusAccepted, deferredResponse{Deferred: true, LoginURL: s.cfg.LoginURL})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	view, err := s.checkout.Resume(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type verifyReferralRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleVerifyReferral(w http.ResponseWriter, r *http.Request) {
	var req verifyReferralRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.checkout.VerifyReferral(r.Context(), identityFrom(r.Context()), req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleApplyReferral(w http.ResponseWriter, r *http.Request) {
	view, err := s.checkout.ApplyReferral(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRemoveReferral(w http.ResponseWriter, r *http.Request) {
	view, err := s.checkout.RemoveReferral(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.checkout.Pay(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

type orderResponse struct {
	ID              string            `json:"id"`
	PlanType        model.PlanType    `json:"plan_type"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Status          model.OrderStatus `json:"status"`
	RazorpayOrderID *string           `json:"razorpay_order_id,omitempty"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.ownOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		ID:              o.ID,
		PlanType:        o.PlanType,
		Amount:          o.Amount,
		Currency:        o.Currency,
		Status:          o.Status,
		RazorpayOrderID: o.RazorpayOrderID,
	})
}

// ownOrder loads the order named in the path and checks it belongs to the
// caller. Foreign orders are reported as missing.
func (s *Server) ownOrder(w http.ResponseWriter, r *http.Request) (*model.Order, bool) {
	id := identityFrom(r.Context())
	if id.UserID == "" {
		s.writeError(w, r, domain.ErrIdentityRequired)
		return nil, false
	}
	o, err := s.checkout.Order(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if o.UserID != id.UserID {
		s.writeError(w, r, domain.ErrNotFound)
		return nil, false
	}
	return o, true
}

// outcomeRequest accepts the payloads the checkout widget hands to its
// success handler and payment.failed event.
type outcomeRequest struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
	Error     *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Metadata    struct {
			PaymentID string `json:"payment_id"`
			OrderID   string `json:"order_id"`
		} `json:"metadata"`
	} `json:"error"`
}

func (req outcomeRequest) outcome(kind adapter.OutcomeKind) adapter.WidgetOutcome {
	out := adapter.WidgetOutcome{
		Kind:           kind,
		PaymentID:      req.PaymentID,
		GatewayOrderID: req.OrderID,
		Signature:      req.Signature,
	}
	if kind == adapter.OutcomeError && req.Error != nil {
		out.ErrorCode = req.Error.Code
		out.ErrorDescription = req.Error.Description
		if out.PaymentID == "" {
			out.PaymentID = req.Error.Metadata.PaymentID
		}
		if out.GatewayOrderID == "" {
			out.GatewayOrderID = req.Error.Metadata.OrderID
		}
	}
	if kind == adapter.OutcomeDismiss {
		out = adapter.WidgetOutcome{Kind: kind}
	}
	return out
}

func (s *Server) handleOutcome(kind adapter.OutcomeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req outcomeRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		o, ok := s.ownOrder(w, r)
		if !ok {
			return
		}
		ctx := logging.WithOrderID(r.Context(), o.ID)
		out := req.outcome(kind)

		var (
			n   *model.Notification
			err error
		)
		res, derr := s.widgets.Deliver(ctx, o.ID, out)
		switch {
		case derr == nil:
			n, err = res.Notification, res.Err
		case errors.Is(derr, adapter.ErrNoWidgetSession), errors.Is(derr, adapter.ErrWidgetSessionClosed):
			// the widget already answered or expired; reconcile against the ledger
			n, err = s.checkout.Resolve(ctx, o.ID, out)
		default:
			err = derr
		}

		if err != nil {
			s.writeErrorWith(w, r.WithContext(ctx), err, n)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}
