package checkout

import (
	"context"
	"errors"

	"diggin-checkout/internal/infrastructure/payment"
)

// SandboxWidget stands in for the gateway's checkout UI by paying through
// the sandbox gateway.
type SandboxWidget struct {
	gateway *payment.MockGateway
	// Dismiss, when set, decides whether the customer closes the widget
	// without paying.
	Dismiss func() bool
}

func NewSandboxWidget(gateway *payment.MockGateway) *SandboxWidget {
	return &SandboxWidget{gateway: gateway}
}

func (w *SandboxWidget) Open(ctx context.Context, opts WidgetOptions) (Outcome, error) {
	if w.Dismiss != nil && w.Dismiss() {
		return Outcome{Kind: OutcomeDismissed}, nil
	}

	proof, err := w.gateway.Collect(ctx, opts.OrderID)
	switch {
	case err == nil:
		return Outcome{Kind: OutcomePaid, Proof: proof}, nil
	case errors.Is(err, payment.ErrCardDeclined):
		return Outcome{Kind: OutcomeFailed, Description: "Payment declined by the bank"}, nil
	default:
		return Outcome{}, err
	}
}
