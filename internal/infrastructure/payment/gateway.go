package payment

import (
	"context"
	"fmt"

	"diggin-checkout/internal/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=paymentmock/gateway.go -package=paymentmock diggin-checkout/internal/infrastructure/payment Gateway

// Gateway is the narrow port to the external payment processor. Amounts
// crossing it are whole rupees; adapters convert to the processor's unit.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// FetchPayments returns every payment attempt the processor holds for
	// the order. It is the ground truth used by reconciliation.
	FetchPayments(ctx context.Context, orderID string) ([]PaymentRecord, error)
	// PublicKey is the key the client widget is opened with.
	PublicKey() string
}

type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

const (
	PaymentCaptured   = "captured"
	PaymentAuthorized = "authorized"
	PaymentFailed     = "failed"
)

type PaymentRecord struct {
	ID     string
	Status string
	Method string
	Amount int64
}

func (p PaymentRecord) Captured() bool {
	return p.Status == PaymentCaptured
}

// Proof is what the gateway widget hands back to the client after a
// successful payment.
type Proof struct {
	OrderID   string
	PaymentID string
	Signature string
	Method    string
}

// Receipt builds the short receipt string sent along with a gateway order.
func Receipt(t domain.IntentType, referenceID uuid.UUID) string {
	return fmt.Sprintf("%s_%s", t.ReceiptPrefix(), referenceID.String()[:8])
}

// CapturedPayment returns the first captured payment in records.
func CapturedPayment(records []PaymentRecord) (PaymentRecord, bool) {
	for _, r := range records {
		if r.Captured() {
			return r, true
		}
	}
	return PaymentRecord{}, false
}
