package adapter

import (
	"context"
	"errors"

	"edu-storefront/internal/domain/model"
)

// GatewayOrderRequest is the server-side order creation payload.
// Receipt carries the local order id and ties both records together.
type GatewayOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// PaymentGateway is the hex port for the server-side gateway API.
type PaymentGateway interface {
	Name() string
	// CreateOrder registers an order with the gateway and returns its id.
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (gatewayOrderID string, err error)
}

// SignatureVerifier checks the signature the widget returns on success.
type SignatureVerifier interface {
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

// WidgetLoader makes sure the gateway's client library is reachable before
// a widget is configured. Success is memoized for the process lifetime.
type WidgetLoader interface {
	EnsureLoaded(ctx context.Context) error
	ScriptURL() string
}

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
	OutcomeDismiss OutcomeKind = "dismiss"
)

// WidgetOutcome is one of the three completions the widget can report.
type WidgetOutcome struct {
	Kind             OutcomeKind
	PaymentID        string
	GatewayOrderID   string
	Signature        string
	ErrorCode        string
	ErrorDescription string
}

// WidgetResult is the orchestrator's answer to a delivered outcome.
type WidgetResult struct {
	Notification *model.Notification
	Err          error
}

// WidgetEvent carries an outcome into the checkout state machine. The
// subscriber answers on Reply exactly once.
type WidgetEvent struct {
	Outcome WidgetOutcome
	Reply   chan<- WidgetResult
}

// WidgetSession is one opened widget. Events yields at most one event.
// Done is closed when the session expires or is closed.
type WidgetSession interface {
	Events() <-chan WidgetEvent
	Done() <-chan struct{}
	Close()
}

// Widget opens widget sessions for configured orders. Sessions are keyed
// by the local order id (cfg.Receipt).
type Widget interface {
	Open(ctx context.Context, cfg model.WidgetConfig) (WidgetSession, error)
}

var (
	ErrNoWidgetSession     = errors.New("no open widget session")
	ErrWidgetSessionClosed = errors.New("widget session already resolved")
)
