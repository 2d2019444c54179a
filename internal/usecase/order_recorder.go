package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/repository"
	"edu-storefront/internal/infra/logging"
)

// OrdersCollection is the document store collection holding orders.
const OrdersCollection = "orders"

var _ OrderRecorder = (*orderRecorder)(nil)

type OrderRecorder interface {
	// CreateOrder persists a pending order and returns it with its id.
	CreateOrder(ctx context.Context, userID string, planType model.PlanType, amount int64, currency string) (*model.Order, error)
	// AttachGatewayOrderID links the gateway order. A later call overwrites.
	AttachGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error
	// RecordOutcome moves the order to a terminal status. An order already in
	// a different terminal status is left untouched and ErrOrderFinalized is
	// returned; repeating the same status re-applies the fields.
	RecordOutcome(ctx context.Context, orderID string, outcome model.PaymentOutcome) error
	Get(ctx context.Context, orderID string) (*model.Order, error)
}

type orderRecorder struct {
	docs repository.DocumentStore
	log  *zerolog.Logger
	now  func() time.Time
}

func NewOrderRecorder(docs repository.DocumentStore, logger *zerolog.Logger) *orderRecorder {
	return &orderRecorder{docs: docs, log: logger, now: time.Now}
}

// orderDocument is the stored shape of an order.
type orderDocument struct {
	UserID          string            `json:"userId"`
	PlanType        model.PlanType    `json:"planType"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Status          model.OrderStatus `json:"status"`
	RazorpayOrderID *string           `json:"razorpayOrderId,omitempty"`
	PaymentID       *string           `json:"paymentId,omitempty"`
	Signature       *string           `json:"signature,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       *time.Time        `json:"updatedAt,omitempty"`
}

func (d orderDocument) toOrder(id string) *model.Order {
	return &model.Order{
		ID:              id,
		UserID:          d.UserID,
		PlanType:        d.PlanType,
		Amount:          d.Amount,
		Currency:        d.Currency,
		Status:          d.Status,
		RazorpayOrderID: d.RazorpayOrderID,
		PaymentID:       d.PaymentID,
		Signature:       d.Signature,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func (r *orderRecorder) CreateOrder(ctx context.Context, userID string, planType model.PlanType, amount int64, currency string) (*model.Order, error) {
	if userID == "" {
		return nil, domain.ErrIdentityRequired
	}
	if _, err := model.LookupPlan(planType); err != nil {
		return nil, err
	}
	if amount < 0 || currency == "" {
		return nil, domain.Validationf("invalid amount %d %q", amount, currency)
	}

	d := orderDocument{
		UserID:    userID,
		PlanType:  planType,
		Amount:    amount,
		Currency:  currency,
		Status:    model.OrderStatusPending,
		CreatedAt: r.now().UTC(),
	}
	doc, err := toDocument(d)
	if err != nil {
		return nil, err
	}
	id, err := r.docs.Create(ctx, OrdersCollection, doc)
	if err != nil {
		return nil, domain.NewRemoteError("orders.create", err)
	}
	logging.With(ctx, r.log).Info().Str("order_id", id).Str("plan_type", string(planType)).Int64("amount", amount).Msg("order created")
	return d.toOrder(id), nil
}

func (r *orderRecorder) AttachGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error {
	if gatewayOrderID == "" {
		return domain.Validationf("gateway order id is required")
	}
	err := r.docs.Update(ctx, OrdersCollection, orderID, repository.Document{"razorpayOrderId": gatewayOrderID})
	return storeErr("orders.attach_gateway_id", err)
}

func (r *orderRecorder) RecordOutcome(ctx context.Context, orderID string, outcome model.PaymentOutcome) error {
	if !outcome.Status.IsTerminal() {
		return domain.Validationf("outcome status %q is not terminal", outcome.Status)
	}
	cur, err := r.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if cur.Status.IsTerminal() && cur.Status != outcome.Status {
		logging.With(ctx, r.log).Warn().Str("order_id", orderID).
			Str("stored", string(cur.Status)).Str("incoming", string(outcome.Status)).
			Msg("outcome ignored for finalized order")
		return fmt.Errorf("%w: order %s is %s", domain.ErrOrderFinalized, orderID, cur.Status)
	}

	partial := repository.Document{
		"status":    string(outcome.Status),
		"updatedAt": r.now().UTC(),
	}
	if outcome.PaymentID != nil {
		partial["paymentId"] = *outcome.PaymentID
	}
	if outcome.Signature != nil {
		partial["signature"] = *outcome.Signature
	}
	return storeErr("orders.record_outcome", r.docs.Update(ctx, OrdersCollection, orderID, partial))
}

func (r *orderRecorder) Get(ctx context.Context, orderID string) (*model.Order, error) {
	doc, err := r.docs.Get(ctx, OrdersCollection, orderID)
	if err != nil {
		return nil, storeErr("orders.get", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var d orderDocument
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, domain.NewRemoteError("orders.get", fmt.Errorf("decode order %s: %w", orderID, err))
	}
	return d.toOrder(orderID), nil
}

// storeErr passes ErrNotFound through and reports anything else as remote.
func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.NewRemoteError(op, err)
}

func toDocument(v any) (repository.Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc repository.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
