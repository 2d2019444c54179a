package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/domain/ports/repository"
	"edu-storefront/internal/infra/logging"
	"edu-storefront/internal/infra/metrics"
)

var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutUseCase drives one caller's checkout from plan selection to the
// recorded payment outcome.
type CheckoutUseCase interface {
	Plans() []model.Plan
	Summary(ctx context.Context, id model.Identity) CheckoutView
	// SelectPlan picks a plan. Without a signed-in user the choice is stored
	// as a pending intent and the view comes back Deferred.
	SelectPlan(ctx context.Context, id model.Identity, planType model.PlanType) (CheckoutView, error)
	// Resume restores a deferred selection once the visitor has signed in.
	Resume(ctx context.Context, id model.Identity) (CheckoutView, error)
	VerifyReferral(ctx context.Context, id model.Identity, code string) (*model.ReferralVerification, error)
	ApplyReferral(ctx context.Context, id model.Identity) (CheckoutView, error)
	RemoveReferral(ctx context.Context, id model.Identity) (CheckoutView, error)
	// Pay creates the order, registers it with the gateway and opens the widget.
	Pay(ctx context.Context, id model.Identity) (*model.CheckoutTicket, error)
	// Resolve records a widget outcome for orderID.
	Resolve(ctx context.Context, orderID string, outcome adapter.WidgetOutcome) (*model.Notification, error)
	Order(ctx context.Context, orderID string) (*model.Order, error)
	// SweepSessions drops checkout sessions idle for longer than idle.
	SweepSessions(idle time.Duration) int
	ActiveSessions() int
}

// CheckoutView is the caller-visible state of a checkout.
type CheckoutView struct {
	State           model.CheckoutState         `json:"state"`
	Plan            *model.SelectedPlan         `json:"plan,omitempty"`
	DiscountPercent int                         `json:"discount_percent"`
	Verification    *model.ReferralVerification `json:"verification,omitempty"`
	OrderID         string                      `json:"order_id,omitempty"`
	Deferred        bool                        `json:"deferred,omitempty"`
}

type CheckoutConfig struct {
	KeyID           string
	DisplayName     string
	Description     string
	SuccessRedirect string
	GuardTTL        time.Duration
	ResolveTimeout  time.Duration
	Dev             bool
}

const (
	msgPaymentSucceeded  = "Payment successful"
	msgPaymentFailed     = "Payment failed. Please try again."
	msgPaymentCancelled  = "Payment cancelled"
	msgPaidButUnrecorded = "Your payment was received but we could not confirm your order. Please contact support with reference %s."
)

type checkoutUC struct {
	orders   OrderRecorder
	referral ReferralUseCase
	intents  repository.IntentRepository
	guard    adapter.CheckoutGuard
	gateway  adapter.PaymentGateway
	verifier adapter.SignatureVerifier // nil disables signature checks
	loader   adapter.WidgetLoader
	widget   adapter.Widget
	cfg      CheckoutConfig
	sessions *sessionRegistry
	log      *zerolog.Logger
}

func NewCheckoutUseCase(
	orders OrderRecorder,
	referral ReferralUseCase,
	intents repository.IntentRepository,
	guard adapter.CheckoutGuard,
	gateway adapter.PaymentGateway,
	verifier adapter.SignatureVerifier,
	loader adapter.WidgetLoader,
	widget adapter.Widget,
	cfg CheckoutConfig,
	logger *zerolog.Logger,
) *checkoutUC {
	if cfg.GuardTTL <= 0 {
		cfg.GuardTTL = 31 * time.Minute
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 15 * time.Second
	}
	return &checkoutUC{
		orders:   orders,
		referral: referral,
		intents:  intents,
		guard:    guard,
		gateway:  gateway,
		verifier: verifier,
		loader:   loader,
		widget:   widget,
		cfg:      cfg,
		sessions: newSessionRegistry(),
		log:      logger,
	}
}

func (u *checkoutUC) Plans() []model.Plan { return model.Catalog() }

func (u *checkoutUC) view(s *checkoutSession) CheckoutView {
	v := CheckoutView{
		State:           s.state,
		DiscountPercent: s.plan.Percent(),
		OrderID:         s.orderID,
	}
	if sel := s.plan.Selected(); !sel.IsZero() {
		v.Plan = &sel
	}
	if s.verification != nil {
		ver := *s.verification
		v.Verification = &ver
	}
	return v
}

func (u *checkoutUC) Summary(ctx context.Context, id model.Identity) CheckoutView {
	s := u.sessions.get(id.SessionKey())
	s.mu.Lock()
	defer s.mu.Unlock()
	return u.view(s)
}

func (u *checkoutUC) SelectPlan(ctx context.Context, id model.Identity, planType model.PlanType) (CheckoutView, error) {
	if _, err := model.LookupPlan(planType); err != nil {
		return CheckoutView{}, err
	}
	if id.UserID == "" {
		if id.VisitorKey == "" {
			return CheckoutView{}, domain.ErrIdentityRequired
		}
		intent := &model.PendingIntent{PlanType: planType, CreatedAt: time.Now().UTC()}
		if err := u.intents.Save(ctx, id.VisitorKey, intent); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return CheckoutView{}, err
			}
			return CheckoutView{}, domain.NewRemoteError("intents.save", err)
		}
		logging.With(ctx, u.log).Debug().Str("plan_type", string(planType)).Msg("plan selection deferred until sign-in")
		return CheckoutView{State: model.CheckoutIdle, Deferred: true}, nil
	}

	s := u.sessions.get(id.SessionKey())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return u.view(s), domain.ErrCheckoutInFlight
	}
	if _, err := s.plan.SelectPlan(planType); err != nil {
		return u.view(s), err
	}
	s.state = s.planState()
	s.orderID = ""
	return u.view(s), nil
}

func (u *checkoutUC) Resume(ctx context.Context, id model.Identity) (CheckoutView, error) {
	if id.UserID == "" {
		return CheckoutView{}, domain.ErrIdentityRequired
	}
	if id.VisitorKey == "" {
		return CheckoutView{}, domain.ErrNotFound
	}
	intent, err := u.intents.Take(ctx, id.VisitorKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return CheckoutView{}, err
		}
		return CheckoutView{}, domain.NewRemoteError("intents.take", err)
	}
	return u.SelectPlan(ctx, id, intent.PlanType)
}

func (u *checkoutUC) VerifyReferral(ctx context.Context, id model.Identity, code string) (*model.ReferralVerification, error) {
	s := u.sessions.get(id.SessionKey())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return nil, domain.ErrCheckoutInFlight
	}

	prev := s.state
	s.state = model.CheckoutAwaitingVerification
	res, err := u.referral.Verify(ctx, code, s.plan.Selected().PlanType)
	s.state = prev
	if err != nil {
		s.verification = nil
		return nil, err
	}
	s.verification = res
	out := *res
	return &out, nil
}

func (u *checkoutUC) ApplyReferral(ctx context.Context, id model.Identity) (CheckoutView, error) {
	s := u.sessions.get(id.SessionKey())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return u.view(s), domain.ErrCheckoutInFlight
	}
	v := s.verification
	if v == nil || !v.IsValid || v.DiscountPercent == nil {
		return u.view(s), fmt.Errorf("%w: no valid referral code to apply", domain.ErrInvalidState)
	}
	if _, err := s.plan.ApplyDiscount(*v.DiscountPercent); err != nil {
		return u.view(s), err
	}
	s.state = s.planState()
	return u.view(s), nil
}

func (u *checkoutUC) RemoveReferral(ctx context.Context, id model.Identity) (CheckoutView, error) {
	s := u.sessions.get(id.SessionKey())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return u.view(s), domain.ErrCheckoutInFlight
	}
	s.verification = nil
	s.plan.RemoveDiscount()
	s.state = s.planState()
	return u.view(s), nil
}

func (u *checkoutUC) Pay(ctx context.Context, id model.Identity) (*model.CheckoutTicket, error) {
	if id.UserID == "" {
		return nil, domain.ErrIdentityRequired
	}
	ctx = logging.WithUserID(ctx, id.UserID)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "CheckoutUC.Pay")()

	s := u.sessions.get(id.SessionKey())
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.plan.Selected()
	if sel.IsZero() {
		return nil, domain.Validationf("select a plan before paying")
	}
	if s.state.InFlight() {
		metrics.IncCheckoutRejected("in_flight")
		return nil, domain.ErrCheckoutInFlight
	}
	// the gateway only takes positive amounts; a full discount has nothing to charge
	if sel.FinalPrice() <= 0 {
		metrics.IncCheckoutRejected("zero_amount")
		return nil, domain.Validationf("discount not applicable: nothing left to pay for %s", sel.PlanType)
	}

	guardKey := "checkout:" + id.UserID
	token, err := u.guard.TryLock(ctx, guardKey, u.cfg.GuardTTL)
	if err != nil {
		if errors.Is(err, domain.ErrCheckoutInFlight) {
			metrics.IncCheckoutRejected("in_flight")
		}
		return nil, err
	}
	detached := context.WithoutCancel(ctx)
	release := func() {
		if err := u.guard.Unlock(detached, guardKey, token); err != nil {
			logging.With(detached, u.log).Warn().Err(err).Msg("release checkout guard")
		}
	}
	opened := false
	defer func() {
		if !opened {
			release()
		}
	}()

	// (a) widget library
	if err := u.loader.EnsureLoaded(ctx); err != nil {
		metrics.IncCheckoutRejected("widget_unavailable")
		log.Error().Err(err).Msg("payment widget unavailable")
		if !errors.Is(err, domain.ErrDependencyUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrDependencyUnavailable, err)
		}
		return nil, err
	}

	// (b) local order
	order, err := u.orders.CreateOrder(ctx, id.UserID, sel.PlanType, sel.FinalPrice(), model.CurrencyINR)
	if err != nil {
		log.Error().Err(err).Msg("create order")
		return nil, err
	}
	ctx = logging.WithOrderID(ctx, order.ID)
	log = logging.With(ctx, u.log)
	s.resumeState = s.state
	s.state = model.CheckoutOrderCreated
	s.orderID = order.ID
	u.sessions.bindOrder(order.ID, s)
	metrics.IncOrder(string(model.OrderStatusPending), "created")

	fail := func(err error) (*model.CheckoutTicket, error) {
		s.state = s.resumeState
		return nil, err
	}

	// (c) gateway order, keyed by the local order id
	notes := map[string]string{
		"order_id":  order.ID,
		"user_id":   id.UserID,
		"plan_type": string(sel.PlanType),
	}
	gatewayOrderID, err := u.gateway.CreateOrder(ctx, adapter.GatewayOrderRequest{
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.ID,
		Notes:    notes,
	})
	if err != nil {
		log.Error().Err(err).Str("gateway", u.gateway.Name()).Msg("gateway order creation failed; order left pending")
		metrics.IncOrder(string(model.OrderStatusPending), "gateway_error")
		if !errors.Is(err, domain.ErrValidation) {
			err = domain.NewRemoteError("gateway.create_order", err)
		}
		return fail(err)
	}
	if err := u.orders.AttachGatewayOrderID(ctx, order.ID, gatewayOrderID); err != nil {
		log.Error().Err(err).Str("gateway_order_id", gatewayOrderID).Msg("attach gateway order id")
		return fail(err)
	}

	// (d) widget
	cfg := model.WidgetConfig{
		Key:         u.cfg.KeyID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		OrderID:     gatewayOrderID,
		Receipt:     order.ID,
		Name:        u.cfg.DisplayName,
		Description: u.cfg.Description,
		ScriptURL:   u.loader.ScriptURL(),
		Notes:       notes,
	}
	if id.Email != "" {
		cfg.Prefill = map[string]string{"email": id.Email}
	}
	ws, err := u.widget.Open(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("open widget")
		return fail(err)
	}
	s.state = model.CheckoutWidgetOpen
	opened = true
	go u.await(detached, ws, order.ID, release)

	log.Info().Str("gateway_order_id", gatewayOrderID).Int64("amount", order.Amount).Msg("widget opened")
	return &model.CheckoutTicket{OrderID: order.ID, Widget: cfg}, nil
}

// await consumes the single outcome of a widget session.
func (u *checkoutUC) await(ctx context.Context, ws adapter.WidgetSession, orderID string, release func()) {
	defer release()
	defer ws.Close()

	select {
	case ev := <-ws.Events():
		rctx, cancel := context.WithTimeout(ctx, u.cfg.ResolveTimeout)
		defer cancel()
		n, err := u.Resolve(rctx, orderID, ev.Outcome)
		ev.Reply <- adapter.WidgetResult{Notification: n, Err: err}
	case <-ws.Done():
		logging.With(ctx, u.log).Info().Msg("widget session expired without an outcome; order stays pending")
		u.expire(orderID)
	}
}

// expire returns the session to its pre-payment state.
func (u *checkoutUC) expire(orderID string) {
	s, ok := u.sessions.forOrder(orderID)
	if !ok {
		return
	}
	u.sessions.unbindOrder(orderID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orderID == orderID && s.state.InFlight() {
		s.state = s.resumeState
	}
}

// finish moves the session that created orderID to its terminal state.
func (u *checkoutUC) finish(orderID string, state model.CheckoutState) {
	s, ok := u.sessions.forOrder(orderID)
	if !ok {
		return
	}
	u.sessions.unbindOrder(orderID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orderID != orderID {
		return
	}
	s.state = state
	if state == model.CheckoutFailed {
		return
	}
	// completed and cancelled checkouts discard the selection
	s.plan.Reset()
	s.verification = nil
}

func (u *checkoutUC) Resolve(ctx context.Context, orderID string, out adapter.WidgetOutcome) (*model.Notification, error) {
	ctx = logging.WithOrderID(ctx, orderID)
	log := logging.With(ctx, u.log)

	switch out.Kind {
	case adapter.OutcomeSuccess:
		return u.resolveSuccess(ctx, log, orderID, out)

	case adapter.OutcomeError:
		outcome := model.PaymentOutcome{Status: model.OrderStatusFailed}
		if out.PaymentID != "" {
			pid := out.PaymentID
			outcome.PaymentID = &pid
		}
		if err := u.orders.RecordOutcome(ctx, orderID, outcome); err != nil {
			return u.recordFailed(ctx, log, orderID, err)
		}
		msg := out.ErrorDescription
		if msg == "" {
			msg = msgPaymentFailed
		}
		log.Info().Str("code", out.ErrorCode).Msg("payment failed")
		metrics.IncOrder(string(model.OrderStatusFailed), "error")
		u.finish(orderID, model.CheckoutFailed)
		return &model.Notification{Kind: model.NotifyFailure, Message: msg, OrderID: orderID}, nil

	case adapter.OutcomeDismiss:
		pid := model.CancelledPaymentID
		if err := u.orders.RecordOutcome(ctx, orderID, model.PaymentOutcome{Status: model.OrderStatusFailed, PaymentID: &pid}); err != nil {
			return u.recordFailed(ctx, log, orderID, err)
		}
		log.Info().Msg("payment cancelled by user")
		metrics.IncOrder(string(model.OrderStatusFailed), "dismiss")
		u.finish(orderID, model.CheckoutCancelled)
		return &model.Notification{Kind: model.NotifyCancelled, Message: msgPaymentCancelled, OrderID: orderID}, nil
	}
	return nil, domain.Validationf("unknown widget outcome %q", out.Kind)
}

func (u *checkoutUC) resolveSuccess(ctx context.Context, log *zerolog.Logger, orderID string, out adapter.WidgetOutcome) (*model.Notification, error) {
	if out.PaymentID == "" {
		return nil, domain.Validationf("payment id is required")
	}
	order, err := u.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return u.paidButUnrecorded(log, orderID, out, err)
	}

	if u.verifier != nil {
		gid := ""
		if order.RazorpayOrderID != nil {
			gid = *order.RazorpayOrderID
		}
		if !u.verifier.VerifySignature(gid, out.PaymentID, out.Signature) {
			metrics.IncCheckoutRejected("signature")
			log.Warn().Str("payment_id", logging.Redact(out.PaymentID, u.cfg.Dev)).Msg("rejected success callback with bad signature")
			return nil, domain.ErrInvalidSignature
		}
	}

	pid := out.PaymentID
	outcome := model.PaymentOutcome{Status: model.OrderStatusCompleted, PaymentID: &pid}
	if out.Signature != "" {
		sig := out.Signature
		outcome.Signature = &sig
	}
	// a success can only conflict with a stored failure, which leaves the
	// payment without a completed order
	if err := u.orders.RecordOutcome(ctx, orderID, outcome); err != nil {
		return u.paidButUnrecorded(log, orderID, out, err)
	}

	if order.Status != model.OrderStatusCompleted {
		metrics.IncOrder(string(model.OrderStatusCompleted), "success")
		metrics.AddPaymentRevenue(order.Currency, order.Amount)
	}
	log.Info().Str("payment_id", logging.Redact(out.PaymentID, u.cfg.Dev)).Msg("payment completed")
	u.finish(orderID, model.CheckoutCompleted)
	return u.successNotification(orderID), nil
}

func (u *checkoutUC) successNotification(orderID string) *model.Notification {
	return &model.Notification{
		Kind:        model.NotifySuccess,
		Message:     msgPaymentSucceeded,
		OrderID:     orderID,
		RedirectURL: u.cfg.SuccessRedirect,
	}
}

// paidButUnrecorded reports a success the ledger could not take. Money has
// moved, so the caller is told to contact support rather than retry.
func (u *checkoutUC) paidButUnrecorded(log *zerolog.Logger, orderID string, out adapter.WidgetOutcome, cause error) (*model.Notification, error) {
	metrics.IncPaidButUnrecorded()
	log.Error().Err(cause).
		Str("payment_id", logging.Redact(out.PaymentID, u.cfg.Dev)).
		Str("gateway_order_id", out.GatewayOrderID).
		Msg("PAID BUT UNRECORDED: gateway reported success, order not updated")
	n := &model.Notification{
		Kind:    model.NotifyContactSupport,
		Message: fmt.Sprintf(msgPaidButUnrecorded, orderID),
		OrderID: orderID,
	}
	return n, fmt.Errorf("%w: order %s: %w", domain.ErrPaidButUnrecorded, orderID, cause)
}

// recordFailed handles a failed write of a failure or dismiss outcome.
func (u *checkoutUC) recordFailed(ctx context.Context, log *zerolog.Logger, orderID string, err error) (*model.Notification, error) {
	if errors.Is(err, domain.ErrOrderFinalized) {
		return u.reportStored(ctx, log, orderID)
	}
	log.Error().Err(err).Msg("record payment outcome")
	return nil, err
}

// reportStored answers a duplicate delivery with the outcome already stored.
func (u *checkoutUC) reportStored(ctx context.Context, log *zerolog.Logger, orderID string) (*model.Notification, error) {
	order, err := u.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("status", string(order.Status)).Msg("duplicate outcome for finalized order")
	metrics.IncOrder(string(order.Status), "duplicate")
	switch {
	case order.Status == model.OrderStatusCompleted:
		u.finish(orderID, model.CheckoutCompleted)
		return u.successNotification(orderID), nil
	case order.PaymentID != nil && *order.PaymentID == model.CancelledPaymentID:
		u.finish(orderID, model.CheckoutCancelled)
		return &model.Notification{Kind: model.NotifyCancelled, Message: msgPaymentCancelled, OrderID: orderID}, nil
	default:
		u.finish(orderID, model.CheckoutFailed)
		return &model.Notification{Kind: model.NotifyFailure, Message: msgPaymentFailed, OrderID: orderID}, nil
	}
}

func (u *checkoutUC) Order(ctx context.Context, orderID string) (*model.Order, error) {
	return u.orders.Get(ctx, orderID)
}

func (u *checkoutUC) SweepSessions(idle time.Duration) int {
	n := u.sessions.sweep(idle)
	metrics.SetCheckoutSessions(u.sessions.len())
	return n
}

func (u *checkoutUC) ActiveSessions() int { return u.sessions.len() }
