//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/domain/ports/repository"
	"edu-storefront/internal/infra/memory"
	"edu-storefront/internal/usecase"
)

type checkoutTestDeps struct {
	docs     *MockDocumentStore
	referral *MockReferralService
	intents  *memory.IntentRepo
	guard    *memory.Guard
	gateway  *MockPaymentGateway
	verifier adapter.SignatureVerifier
	loader   *MockWidgetLoader
	widget   *MockWidget
	cfg      usecase.CheckoutConfig
}

func newCheckoutDeps() *checkoutTestDeps {
	return &checkoutTestDeps{
		docs:     NewMockDocumentStore(),
		referral: &MockReferralService{},
		intents:  memory.NewIntentRepo(time.Hour),
		guard:    memory.NewGuard(),
		gateway:  &MockPaymentGateway{},
		loader:   &MockWidgetLoader{},
		widget:   NewMockWidget(time.Minute),
		cfg: usecase.CheckoutConfig{
			KeyID:           "rzp_test_key",
			DisplayName:     "Storefront",
			Description:     "Course access",
			SuccessRedirect: "/dashboard",
			GuardTTL:        time.Minute,
		},
	}
}

func (d *checkoutTestDeps) build() usecase.CheckoutUseCase {
	logger := newTestLogger()
	return usecase.NewCheckoutUseCase(
		usecase.NewOrderRecorder(d.docs, logger),
		usecase.NewReferralUseCase(d.referral, logger),
		d.intents,
		d.guard,
		d.gateway,
		d.verifier,
		d.loader,
		d.widget,
		d.cfg,
		logger,
	)
}

var alice = model.Identity{UserID: "user-1", Email: "alice@example.com", VisitorKey: "v-1"}

func storedOrder(t *testing.T, d *checkoutTestDeps, id string) *model.Order {
	t.Helper()
	o, err := usecase.NewOrderRecorder(d.docs.Inner, newTestLogger()).Get(context.Background(), id)
	if err != nil {
		t.Fatalf("load order %s: %v", id, err)
	}
	return o
}

// payBasic selects basic and pays, returning the ticket.
func payBasic(t *testing.T, uc usecase.CheckoutUseCase) *model.CheckoutTicket {
	t.Helper()
	ctx := context.Background()
	if _, err := uc.SelectPlan(ctx, alice, model.PlanBasic); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	ticket, err := uc.Pay(ctx, alice)
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	return ticket
}

func deliver(t *testing.T, d *checkoutTestDeps, orderID string, out adapter.WidgetOutcome) adapter.WidgetResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := d.widget.Bridge.Deliver(ctx, orderID, out)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	return res
}

// waitUnlocked polls until the checkout guard for alice is free again.
func waitUnlocked(t *testing.T, g *memory.Guard) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tok, err := g.TryLock(context.Background(), "checkout:"+alice.UserID, time.Second)
		if err == nil {
			_ = g.Unlock(context.Background(), "checkout:"+alice.UserID, tok)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("checkout guard was never released")
}

func TestCheckout_ReferralDiscountScenario(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	d.referral.VerifyFunc = func(ctx context.Context, code string) (adapter.ReferralResult, error) {
		return adapter.ReferralResult{IsValid: true, DiscountPercent: intPtr(10), Message: "10% off"}, nil
	}
	uc := d.build()

	view, err := uc.SelectPlan(ctx, alice, model.PlanBasic)
	if err != nil {
		t.Fatal(err)
	}
	if view.State != model.CheckoutPlanSelected || view.Plan.OriginalPrice != 180000 {
		t.Fatalf("unexpected view %+v", view)
	}

	v, err := uc.VerifyReferral(ctx, alice, "SAVE10")
	if err != nil {
		t.Fatalf("VerifyReferral: %v", err)
	}
	if !v.IsValid || *v.DiscountPercent != 10 {
		t.Fatalf("verification = %+v", v)
	}
	if got := uc.Summary(ctx, alice); got.Plan.DiscountedPrice != nil {
		t.Fatal("verification alone must not change the price")
	}

	view, err = uc.ApplyReferral(ctx, alice)
	if err != nil {
		t.Fatalf("ApplyReferral: %v", err)
	}
	if view.State != model.CheckoutDiscountApplied || view.Plan.DiscountedPrice == nil || *view.Plan.DiscountedPrice != 162000 {
		t.Fatalf("expected 162000 after apply, got %+v", view.Plan)
	}

	view, err = uc.RemoveReferral(ctx, alice)
	if err != nil {
		t.Fatalf("RemoveReferral: %v", err)
	}
	if view.Plan.DiscountedPrice != nil || view.Plan.FinalPrice() != 180000 || view.State != model.CheckoutPlanSelected {
		t.Fatalf("expected price to revert, got %+v", view)
	}
	if view.Verification != nil {
		t.Error("removing the code must discard the verification")
	}
}

func TestCheckout_EmptyCodeMakesNoRemoteCall(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	uc := d.build()
	_, _ = uc.SelectPlan(ctx, alice, model.PlanPremium)

	_, err := uc.VerifyReferral(ctx, alice, "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if d.referral.Calls != 0 {
		t.Errorf("expected no remote call, got %d", d.referral.Calls)
	}
}

func TestCheckout_ApplyWithoutValidVerification(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	d.referral.VerifyFunc = func(ctx context.Context, code string) (adapter.ReferralResult, error) {
		return adapter.ReferralResult{IsValid: false, Message: "Unknown code"}, nil
	}
	uc := d.build()
	_, _ = uc.SelectPlan(ctx, alice, model.PlanBasic)

	if _, err := uc.ApplyReferral(ctx, alice); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("apply without verify: expected ErrInvalidState, got %v", err)
	}
	v, err := uc.VerifyReferral(ctx, alice, "BAD")
	if err != nil || v.IsValid || v.Error != "Unknown code" {
		t.Fatalf("verify: %+v %v", v, err)
	}
	if _, err := uc.ApplyReferral(ctx, alice); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("apply invalid: expected ErrInvalidState, got %v", err)
	}
}

func TestCheckout_DeferredSelection(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	uc := d.build()
	visitor := model.Identity{VisitorKey: "v-1"}

	view, err := uc.SelectPlan(ctx, visitor, model.PlanPremium)
	if err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	if !view.Deferred || view.Plan != nil {
		t.Fatalf("expected a deferred selection, got %+v", view)
	}
	if _, err := uc.Pay(ctx, visitor); !errors.Is(err, domain.ErrIdentityRequired) {
		t.Fatalf("Pay without identity: expected ErrIdentityRequired, got %v", err)
	}

	view, err = uc.Resume(ctx, alice)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if view.Plan == nil || view.Plan.PlanType != model.PlanPremium || view.State != model.CheckoutPlanSelected {
		t.Fatalf("unexpected resumed view %+v", view)
	}
	if _, err := uc.Resume(ctx, alice); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second resume: expected ErrNotFound, got %v", err)
	}
}

func TestCheckout_PayPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("identity required", func(t *testing.T) {
		uc := newCheckoutDeps().build()
		if _, err := uc.Pay(ctx, model.Identity{VisitorKey: "v"}); !errors.Is(err, domain.ErrIdentityRequired) {
			t.Fatalf("expected ErrIdentityRequired, got %v", err)
		}
	})

	t.Run("plan required", func(t *testing.T) {
		d := newCheckoutDeps()
		uc := d.build()
		if _, err := uc.Pay(ctx, alice); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if d.loader.Calls != 0 {
			t.Error("nothing must be attempted without a plan")
		}
	})

	t.Run("widget library unavailable", func(t *testing.T) {
		d := newCheckoutDeps()
		d.loader.EnsureLoadedFunc = func(ctx context.Context) error { return errors.New("script blocked") }
		uc := d.build()
		_, _ = uc.SelectPlan(ctx, alice, model.PlanBasic)

		if _, err := uc.Pay(ctx, alice); !errors.Is(err, domain.ErrDependencyUnavailable) {
			t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
		}
		if n := d.docs.Inner.Len(usecase.OrdersCollection); n != 0 {
			t.Errorf("no order may be created, found %d", n)
		}
		waitUnlocked(t, d.guard)
	})
}

func TestCheckout_PayOpensWidget(t *testing.T) {
	d := newCheckoutDeps()
	uc := d.build()
	ticket := payBasic(t, uc)

	if len(d.gateway.Requests) != 1 {
		t.Fatalf("expected one gateway request, got %d", len(d.gateway.Requests))
	}
	req := d.gateway.Requests[0]
	if req.Receipt != ticket.OrderID || req.Amount != 180000 || req.Currency != model.CurrencyINR {
		t.Errorf("gateway request = %+v", req)
	}
	if req.Notes["order_id"] != ticket.OrderID || req.Notes["user_id"] != alice.UserID || req.Notes["plan_type"] != "basic" {
		t.Errorf("notes = %+v", req.Notes)
	}

	w := ticket.Widget
	if w.Key != "rzp_test_key" || w.OrderID != "order_G1" || w.Receipt != ticket.OrderID || w.Amount != 180000 {
		t.Errorf("widget config = %+v", w)
	}
	if w.Prefill["email"] != alice.Email || w.ScriptURL == "" {
		t.Errorf("widget prefill/script = %+v", w)
	}

	o := storedOrder(t, d, ticket.OrderID)
	if o.Status != model.OrderStatusPending || o.RazorpayOrderID == nil || *o.RazorpayOrderID != "order_G1" {
		t.Errorf("order = %+v", o)
	}
	if got := uc.Summary(context.Background(), alice); got.State != model.CheckoutWidgetOpen || got.OrderID != ticket.OrderID {
		t.Errorf("summary = %+v", got)
	}
}

func TestCheckout_DiscountedAmountIsCharged(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	uc := d.build()
	_, _ = uc.SelectPlan(ctx, alice, model.PlanBasic)
	_, _ = uc.VerifyReferral(ctx, alice, "SAVE10")
	_, _ = uc.ApplyReferral(ctx, alice)

	ticket, err := uc.Pay(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if o := storedOrder(t, d, ticket.OrderID); o.Amount != 162000 {
		t.Errorf("order amount = %d", o.Amount)
	}
	if d.gateway.Requests[0].Amount != 162000 {
		t.Errorf("gateway amount = %d", d.gateway.Requests[0].Amount)
	}
}

func TestCheckout_FullDiscountIsNotCharged(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	d.referral.VerifyFunc = func(ctx context.Context, code string) (adapter.ReferralResult, error) {
		return adapter.ReferralResult{IsValid: true, DiscountPercent: intPtr(100)}, nil
	}
	uc := d.build()
	_, _ = uc.SelectPlan(ctx, alice, model.PlanBasic)
	_, _ = uc.VerifyReferral(ctx, alice, "FREE100")
	view, err := uc.ApplyReferral(ctx, alice)
	if err != nil {
		t.Fatalf("ApplyReferral: %v", err)
	}
	if view.Plan == nil || view.Plan.FinalPrice() != 0 {
		t.Fatalf("expected a free plan after a full discount, got %+v", view.Plan)
	}

	for i := 0; i < 3; i++ {
		if _, err := uc.Pay(ctx, alice); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Pay #%d: expected ErrValidation, got %v", i+1, err)
		}
	}
	if n := d.docs.Inner.Len("orders"); n != 0 {
		t.Errorf("expected no orders to be created, got %d", n)
	}
	if len(d.gateway.Requests) != 0 || d.widget.OpenCount() != 0 {
		t.Error("gateway and widget must not be touched")
	}
	waitUnlocked(t, d.guard)
}

func TestCheckout_GatewayFailureLeavesOrderPending(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	d.gateway.CreateOrderFunc = func(ctx context.Context, req adapter.GatewayOrderRequest) (string, error) {
		return "", errors.New("dial tcp: connection reset")
	}
	uc := d.build()
	_, _ = uc.SelectPlan(ctx, alice, model.PlanBasic)

	_, err := uc.Pay(ctx, alice)
	if !errors.Is(err, domain.ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
	if d.widget.OpenCount() != 0 {
		t.Fatal("widget must not open after a gateway failure")
	}

	orderID := d.gateway.Requests[0].Receipt
	o := storedOrder(t, d, orderID)
	if o.Status != model.OrderStatusPending || o.RazorpayOrderID != nil {
		t.Errorf("expected pending order without gateway id, got %+v", o)
	}

	view := uc.Summary(ctx, alice)
	if view.State != model.CheckoutPlanSelected {
		t.Errorf("user must be able to retry, state = %s", view.State)
	}
	waitUnlocked(t, d.guard)
}

func TestCheckout_SuccessCompletesOrder(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	uc := d.build()
	ticket := payBasic(t, uc)

	res := deliver(t, d, ticket.OrderID, adapter.WidgetOutcome{
		Kind:           adapter.OutcomeSuccess,
		PaymentID:      "P1",
		GatewayOrderID: "order_G1",
		Signature:      "sig",
	})
	if res.Err != nil {
		t.Fatalf("resolve: %v", res.Err)
	}
	if res.Notification.Kind != model.NotifySuccess || res.Notification.RedirectURL != "/dashboard" {
		t.Errorf("notification = %+v", res.Notification)
	}

	o := storedOrder(t, d, ticket.OrderID)
	if o.Status != model.OrderStatusCompleted || *o.PaymentID != "P1" || *o.Signature != "sig" {
		t.Errorf("order = %+v", o)
	}

	view := uc.Summary(ctx, alice)
	if view.State != model.CheckoutCompleted || view.Plan != nil {
		t.Errorf("completed checkout must discard the selection, got %+v", view)
	}
	waitUnlocked(t, d.guard)
}

func TestCheckout_DismissCancelsOrder(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	uc := d.build()
	ticket := payBasic(t, uc)

	res := deliver(t, d, ticket.OrderID, adapter.WidgetOutcome{Kind: adapter.OutcomeDismiss})
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	n := res.Notification
	if n.Kind != model.NotifyCancelled || !strings.Contains(strings.ToLower(n.Message), "cancelled") {
		t.Errorf("notification = %+v", n)
	}

	o := storedOrder(t, d, ticket.OrderID)
	if o.Status != model.OrderStatusFailed || o.PaymentID == nil || *o.PaymentID != model.CancelledPaymentID {
		t.Errorf("order = %+v", o)
	}
	if view := uc.Summary(ctx, alice); view.State != model.CheckoutCancelled {
		t.Errorf("state = %s", view.State)
	}
}

func TestCheckout_ErrorRecordsFailure(t *testing.T) {
	t.Run("gateway message and payment id", func(t *testing.T) {
		d := newCheckoutDeps()
		uc := d.build()
		ticket := payBasic(t, uc)

		res := deliver(t, d, ticket.OrderID, adapter.WidgetOutcome{
			Kind:             adapter.OutcomeError,
			PaymentID:        "pay_F1",
			ErrorCode:        "BAD_REQUEST_ERROR",
			ErrorDescription: "Card declined by bank",
		})
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		if res.Notification.Kind != model.NotifyFailure || res.Notification.Message != "Card declined by bank" {
			t.Errorf("notification = %+v", res.Notification)
		}
		o := storedOrder(t, d, ticket.OrderID)
		if o.Status != model.OrderStatusFailed || *o.PaymentID != "pay_F1" {
			t.Errorf("order = %+v", o)
		}

		view := uc.Summary(context.Background(), alice)
		if view.State != model.CheckoutFailed || view.Plan == nil {
			t.Errorf("failed checkout keeps the plan for retry, got %+v", view)
		}
	})

	t.Run("generic message and no payment id", func(t *testing.T) {
		d := newCheckoutDeps()
		uc := d.build()
		ticket := payBasic(t, uc)

		res := deliver(t, d, ticket.OrderID, adapter.WidgetOutcome{Kind: adapter.OutcomeError})
		if res.Notification.Message == "" || strings.Contains(strings.ToLower(res.Notification.Message), "cancelled") {
			t.Errorf("expected generic failure wording, got %q", res.Notification.Message)
		}
		if o := storedOrder(t, d, ticket.OrderID); o.PaymentID != nil {
			t.Errorf("payment id must be absent, got %v", *o.PaymentID)
		}
	})
}

func TestCheckout_DuplicateOutcomes(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	uc := d.build()
	ticket := payBasic(t, uc)
	success := adapter.WidgetOutcome{Kind: adapter.OutcomeSuccess, PaymentID: "P1"}

	deliver(t, d, ticket.OrderID, success)

	// the session accepts one delivery; repeats go through Resolve directly
	_, err := d.widget.Bridge.Deliver(ctx, ticket.OrderID, success)
	if !errors.Is(err, adapter.ErrNoWidgetSession) && !errors.Is(err, adapter.ErrWidgetSessionClosed) {
		t.Fatalf("expected the widget session to be spent, got %v", err)
	}
	n, err := uc.Resolve(ctx, ticket.OrderID, success)
	if err != nil || n.Kind != model.NotifySuccess {
		t.Fatalf("repeat success: %+v %v", n, err)
	}

	n, err = uc.Resolve(ctx, ticket.OrderID, adapter.WidgetOutcome{Kind: adapter.OutcomeDismiss})
	if err != nil {
		t.Fatalf("late dismiss: %v", err)
	}
	if n.Kind != model.NotifySuccess {
		t.Errorf("late dismiss must report the stored outcome, got %+v", n)
	}
	if o := storedOrder(t, d, ticket.OrderID); o.Status != model.OrderStatusCompleted || *o.PaymentID != "P1" {
		t.Errorf("order = %+v", o)
	}
}

func TestCheckout_SuccessAfterFailureNeedsSupport(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	uc := d.build()
	ticket := payBasic(t, uc)

	deliver(t, d, ticket.OrderID, adapter.WidgetOutcome{Kind: adapter.OutcomeDismiss})
	n, err := uc.Resolve(ctx, ticket.OrderID, adapter.WidgetOutcome{Kind: adapter.OutcomeSuccess, PaymentID: "P1"})
	if !errors.Is(err, domain.ErrPaidButUnrecorded) {
		t.Fatalf("expected ErrPaidButUnrecorded, got %v", err)
	}
	if n == nil || n.Kind != model.NotifyContactSupport {
		t.Errorf("notification = %+v", n)
	}
	if o := storedOrder(t, d, ticket.OrderID); o.Status != model.OrderStatusFailed {
		t.Errorf("stored status must stay failed, got %s", o.Status)
	}
}

func TestCheckout_PaidButUnrecorded(t *testing.T) {
	d := newCheckoutDeps()
	uc := d.build()
	ticket := payBasic(t, uc)

	d.docs.UpdateFunc = func(ctx context.Context, collection, id string, partial repository.Document) error {
		return errors.New("document store unavailable")
	}
	res := deliver(t, d, ticket.OrderID, adapter.WidgetOutcome{Kind: adapter.OutcomeSuccess, PaymentID: "P1"})

	if !errors.Is(res.Err, domain.ErrPaidButUnrecorded) {
		t.Fatalf("expected ErrPaidButUnrecorded, got %v", res.Err)
	}
	if errors.Is(res.Err, domain.ErrValidation) {
		t.Error("must not look like an ordinary failure")
	}
	n := res.Notification
	if n == nil || n.Kind != model.NotifyContactSupport || !strings.Contains(n.Message, ticket.OrderID) {
		t.Errorf("notification = %+v", n)
	}
	if o := storedOrder(t, d, ticket.OrderID); o.Status != model.OrderStatusPending {
		t.Errorf("order must not be downgraded to failed, got %s", o.Status)
	}
}

func TestCheckout_InFlightGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("same session", func(t *testing.T) {
		d := newCheckoutDeps()
		uc := d.build()
		payBasic(t, uc)

		if _, err := uc.Pay(ctx, alice); !errors.Is(err, domain.ErrCheckoutInFlight) {
			t.Fatalf("expected ErrCheckoutInFlight, got %v", err)
		}
		if _, err := uc.SelectPlan(ctx, alice, model.PlanPremium); !errors.Is(err, domain.ErrCheckoutInFlight) {
			t.Fatalf("plan change while paying: expected ErrCheckoutInFlight, got %v", err)
		}
		if len(d.gateway.Requests) != 1 {
			t.Errorf("expected a single gateway order, got %d", len(d.gateway.Requests))
		}
	})

	t.Run("guard held elsewhere", func(t *testing.T) {
		d := newCheckoutDeps()
		if _, err := d.guard.TryLock(ctx, "checkout:"+alice.UserID, time.Minute); err != nil {
			t.Fatal(err)
		}
		uc := d.build()
		_, _ = uc.SelectPlan(ctx, alice, model.PlanBasic)

		if _, err := uc.Pay(ctx, alice); !errors.Is(err, domain.ErrCheckoutInFlight) {
			t.Fatalf("expected ErrCheckoutInFlight, got %v", err)
		}
		if n := d.docs.Inner.Len(usecase.OrdersCollection); n != 0 {
			t.Errorf("no order may be created, found %d", n)
		}
	})
}

func TestCheckout_SignatureCheck(t *testing.T) {
	d := newCheckoutDeps()
	d.verifier = &MockSignatureVerifier{VerifyFunc: func(gid, pid, sig string) bool {
		return gid == "order_G1" && pid == "P1" && sig == "good"
	}}
	uc := d.build()
	ticket := payBasic(t, uc)

	res := deliver(t, d, ticket.OrderID, adapter.WidgetOutcome{Kind: adapter.OutcomeSuccess, PaymentID: "P1", Signature: "forged"})
	if !errors.Is(res.Err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", res.Err)
	}
	if o := storedOrder(t, d, ticket.OrderID); o.Status != model.OrderStatusPending {
		t.Fatalf("forged callback must not write, status = %s", o.Status)
	}

	n, err := uc.Resolve(context.Background(), ticket.OrderID, adapter.WidgetOutcome{Kind: adapter.OutcomeSuccess, PaymentID: "P1", Signature: "good"})
	if err != nil || n.Kind != model.NotifySuccess {
		t.Fatalf("genuine callback: %+v %v", n, err)
	}
}

func TestCheckout_ExpiredWidgetAllowsRetry(t *testing.T) {
	ctx := context.Background()
	d := newCheckoutDeps()
	d.widget = NewMockWidget(time.Nanosecond)
	uc := d.build()
	ticket := payBasic(t, uc)

	time.Sleep(time.Millisecond)
	if n := d.widget.Bridge.Sweep(); n != 1 {
		t.Fatalf("swept %d sessions", n)
	}
	waitUnlocked(t, d.guard)

	deadline := time.Now().Add(time.Second)
	for uc.Summary(ctx, alice).State != model.CheckoutPlanSelected {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s", uc.Summary(ctx, alice).State)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if o := storedOrder(t, d, ticket.OrderID); o.Status != model.OrderStatusPending {
		t.Errorf("expired order stays pending, got %s", o.Status)
	}

	// a late callback is still reconciled against the order record
	n, err := uc.Resolve(ctx, ticket.OrderID, adapter.WidgetOutcome{Kind: adapter.OutcomeDismiss})
	if err != nil || n.Kind != model.NotifyCancelled {
		t.Fatalf("late dismiss: %+v %v", n, err)
	}
}

func TestCheckout_SweepSessions(t *testing.T) {
	ctx := context.Background()
	uc := newCheckoutDeps().build()
	_, _ = uc.SelectPlan(ctx, alice, model.PlanBasic)
	if uc.ActiveSessions() != 1 {
		t.Fatalf("sessions = %d", uc.ActiveSessions())
	}
	if n := uc.SweepSessions(time.Hour); n != 0 {
		t.Errorf("fresh session swept")
	}
	time.Sleep(2 * time.Millisecond)
	if n := uc.SweepSessions(time.Millisecond); n != 1 {
		t.Errorf("swept %d", n)
	}
	if uc.ActiveSessions() != 0 {
		t.Errorf("sessions = %d", uc.ActiveSessions())
	}
}

func TestCheckout_Plans(t *testing.T) {
	plans := newCheckoutDeps().build().Plans()
	if len(plans) != 2 || plans[0].Type != model.PlanBasic || plans[1].OriginalPrice != 500000 {
		t.Errorf("plans = %+v", plans)
	}
}
