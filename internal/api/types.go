// Package api holds the JSON contracts of the checkout endpoints. The
// server and the client orchestrator both use them.
package api

import (
	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/notify"
)

const (
	PathCreateOrder      = "/functions/v1/create-razorpay-order"
	PathVerifyPayment    = "/functions/v1/verify-razorpay-payment"
	PathSendNotification = "/functions/v1/send-notification"
)

type CreateOrderRequest struct {
	Type        domain.IntentType `json:"type"`
	Items       []domain.LineItem `json:"items,omitempty"`
	Guests      int               `json:"guests,omitempty"`
	BookingDate string            `json:"bookingDate,omitempty"`
	BookingTime string            `json:"bookingTime,omitempty"`
	BookingName string            `json:"bookingName,omitempty"`
	Contact     string            `json:"contact,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}

func (r CreateOrderRequest) Domain() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		Type:  r.Type,
		Items: r.Items,
		Booking: domain.Booking{
			Guests:  r.Guests,
			Name:    r.BookingName,
			Date:    r.BookingDate,
			Time:    r.BookingTime,
			Contact: r.Contact,
			Notes:   r.Notes,
		},
	}
}

type CreateOrderResponse struct {
	Success     bool              `json:"success"`
	OrderID     string            `json:"orderId,omitempty"`
	Amount      int64             `json:"amount,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	ReferenceID string            `json:"referenceId,omitempty"`
	Key         string            `json:"key,omitempty"`
	Items       []domain.LineItem `json:"items,omitempty"`
	Error       string            `json:"error,omitempty"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string            `json:"razorpay_order_id"`
	RazorpayPaymentID string            `json:"razorpay_payment_id"`
	RazorpaySignature string            `json:"razorpay_signature"`
	Type              domain.IntentType `json:"type"`
	ReferenceID       string            `json:"referenceId"`
	PaymentMethod     string            `json:"paymentMethod,omitempty"`
}

func (r VerifyPaymentRequest) Domain() domain.VerificationRequest {
	return domain.VerificationRequest{
		GatewayOrderID:   r.RazorpayOrderID,
		GatewayPaymentID: r.RazorpayPaymentID,
		Signature:        r.RazorpaySignature,
		Type:             r.Type,
		ReferenceID:      r.ReferenceID,
		PaymentMethod:    r.PaymentMethod,
	}
}

type VerifyPaymentResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	ReferenceID string `json:"referenceId,omitempty"`
	Error       string `json:"error,omitempty"`
}

type SendNotificationRequest = notify.Notification

type SendNotificationResponse struct {
	Success bool   `json:"success"`
	Queued  bool   `json:"queued,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type IntentView struct {
	ID               string               `json:"id"`
	Type             domain.IntentType    `json:"type"`
	Items            []domain.LineItem    `json:"items,omitempty"`
	Booking          *domain.Booking      `json:"booking,omitempty"`
	TotalAmount      int64                `json:"totalAmount"`
	Status           domain.Status        `json:"status"`
	PaymentStatus    domain.PaymentStatus `json:"paymentStatus"`
	PaymentMethod    string               `json:"paymentMethod,omitempty"`
	GatewayPaymentID string               `json:"paymentId,omitempty"`
	AmountPaid       *int64               `json:"amountPaid,omitempty"`
	PaidAt           string               `json:"paidAt,omitempty"`
	CreatedAt        string               `json:"createdAt"`
}

type UpdateStatusRequest struct {
	Status domain.Status `json:"status" binding:"required"`
}
