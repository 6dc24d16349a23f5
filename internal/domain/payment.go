package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReferenceType string

const (
	ReferenceOrder       ReferenceType = "order"
	ReferenceReservation ReferenceType = "reservation"
)

// Payment is the audit ledger entry correlating an intent with a gateway
// order. It is matched by GatewayOrderID, never by ReferenceID.
type Payment struct {
	ID               uuid.UUID
	ReferenceID      uuid.UUID
	ReferenceType    ReferenceType
	OwnerID          string
	Amount           int64
	Currency         string
	Status           PaymentStatus
	PaymentMethod    string
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (t ReferenceType) IntentType() IntentType {
	if t == ReferenceReservation {
		return IntentReservation
	}
	return IntentFoodOrder
}
