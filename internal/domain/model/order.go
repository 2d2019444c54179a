package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // created, gateway outcome not yet known
	OrderStatusCompleted OrderStatus = "completed" // gateway reported success
	OrderStatusFailed    OrderStatus = "failed"    // gateway error or user dismissed the widget
)

// IsTerminal reports whether s is completed or failed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// CancelledPaymentID is stored as the payment id when the user closes the
// widget without paying.
const CancelledPaymentID = "cancelled"

// Order is the durable record of one checkout attempt. It is never deleted.
type Order struct {
	ID              string
	UserID          string
	PlanType        PlanType
	Amount          int64  // paise, immutable
	Currency        string // immutable
	Status          OrderStatus
	RazorpayOrderID *string // set before the widget opens
	PaymentID       *string // set only together with a terminal status
	Signature       *string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// PaymentOutcome is the terminal result written by RecordOutcome.
type PaymentOutcome struct {
	Status    OrderStatus
	PaymentID *string
	Signature *string
}
