package model

import "time"

// CheckoutState is the position of a checkout session in the payment flow.
type CheckoutState string

const (
	CheckoutIdle                 CheckoutState = "idle"
	CheckoutPlanSelected         CheckoutState = "plan_selected"
	CheckoutAwaitingVerification CheckoutState = "awaiting_verification"
	CheckoutDiscountApplied      CheckoutState = "discount_applied"
	CheckoutOrderCreated         CheckoutState = "order_created"
	CheckoutWidgetOpen           CheckoutState = "widget_open"
	CheckoutCompleted            CheckoutState = "completed"
	CheckoutFailed               CheckoutState = "failed"
	CheckoutCancelled            CheckoutState = "cancelled"
)

// InFlight reports whether an order exists and its outcome is still pending.
func (s CheckoutState) InFlight() bool {
	return s == CheckoutOrderCreated || s == CheckoutWidgetOpen
}

// ReferralVerification is the transient result of a verify call.
type ReferralVerification struct {
	Code            string `json:"code"`
	IsValid         bool   `json:"is_valid"`
	DiscountPercent *int   `json:"discount_percent,omitempty"`
	Error           string `json:"error,omitempty"`
}

// PendingIntent is a plan chosen before identity was established.
type PendingIntent struct {
	PlanType  PlanType  `json:"plan_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity identifies the caller of a checkout operation. UserID is empty
// until the identity provider has authenticated the visitor.
type Identity struct {
	UserID     string
	Email      string
	VisitorKey string
}

// SessionKey is the key checkout state is held under.
func (i Identity) SessionKey() string {
	if i.UserID != "" {
		return "user:" + i.UserID
	}
	return "visitor:" + i.VisitorKey
}

// WidgetConfig is everything the browser needs to open the payment widget.
type WidgetConfig struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	OrderID     string            `json:"order_id"`
	Receipt     string            `json:"receipt"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	ScriptURL   string            `json:"script_url"`
	Notes       map[string]string `json:"notes,omitempty"`
	Prefill     map[string]string `json:"prefill,omitempty"`
}

// CheckoutTicket is returned once the widget is open.
type CheckoutTicket struct {
	OrderID string       `json:"order_id"`
	Widget  WidgetConfig `json:"widget"`
}

type NotificationKind string

const (
	NotifySuccess        NotificationKind = "success"
	NotifyFailure        NotificationKind = "failure"
	NotifyCancelled      NotificationKind = "cancelled"
	NotifyContactSupport NotificationKind = "contact_support"
)

// Notification is a user-visible message produced by the checkout flow.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	Message     string           `json:"message"`
	OrderID     string           `json:"order_id,omitempty"`
	RedirectURL string           `json:"redirect_url,omitempty"`
}
