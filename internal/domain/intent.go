package domain

import (
	"time"

	"github.com/google/uuid"
)

type IntentType string

const (
	IntentFoodOrder   IntentType = "food_order"
	IntentReservation IntentType = "reservation"
)

func (t IntentType) Valid() bool {
	return t == IntentFoodOrder || t == IntentReservation
}

// ReferenceType is the audit-ledger name of an intent type.
func (t IntentType) ReferenceType() ReferenceType {
	if t == IntentReservation {
		return ReferenceReservation
	}
	return ReferenceOrder
}

// ReceiptPrefix is used to build the gateway receipt string.
func (t IntentType) ReceiptPrefix() string {
	if t == IntentReservation {
		return "res"
	}
	return "order"
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

const DefaultPaymentMethod = "upi"

type LineItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type Booking struct {
	Guests  int    `json:"guests"`
	Name    string `json:"name,omitempty"`
	Date    string `json:"date,omitempty"`
	Time    string `json:"time,omitempty"`
	Contact string `json:"contact,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Intent is a food order or a reservation created before any money moves.
// Amounts are whole rupees.
type Intent struct {
	ID            uuid.UUID
	OwnerID       string
	Type          IntentType
	Items         []LineItem
	Booking       *Booking
	TotalAmount   int64
	Status        Status
	PaymentStatus PaymentStatus

	GatewayOrderID   string
	GatewayPaymentID string
	PaymentMethod    string
	AmountPaid       *int64
	PaidAt           *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *Intent) IsPaid() bool {
	return i.PaymentStatus == PaymentPaid
}

// Payable reports whether a verified payment may still settle this intent.
func (i *Intent) Payable() bool {
	return i.Status == StatusPending && i.PaymentStatus != PaymentPaid
}

// Settlement carries the values written when an intent transitions to paid.
type Settlement struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Method           string
	Amount           int64
	PaidAt           time.Time
}

// CheckoutRequest is the createOrder payload after decoding. Client prices
// are kept only for logging; they never reach the stored intent.
type CheckoutRequest struct {
	Type    IntentType
	Items   []LineItem
	Booking Booking
}

// Checkout is the handle the client needs to open the gateway widget.
type Checkout struct {
	GatewayOrderID string
	Amount         int64
	Currency       string
	ReferenceID    uuid.UUID
	PublicKey      string
	// Items are the catalog-priced lines of a food order.
	Items          []LineItem
}

// VerificationRequest is the gateway callback, delivered by the client.
type VerificationRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Type             IntentType
	ReferenceID      string
	PaymentMethod    string
}

type Principal struct {
	ID    string
	Email string
	Name  string
}

func (p Principal) Authenticated() bool {
	return p.ID != ""
}
