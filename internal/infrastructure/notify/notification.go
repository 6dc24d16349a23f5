package notify

import (
	"fmt"
	"net/mail"
	"strings"

	"diggin-checkout/internal/domain"
)

type Type string

const (
	TypeOrder   Type = "order"
	TypeBooking Type = "booking"
	TypeInquiry Type = "inquiry"
)

type Details struct {
	Items          []domain.LineItem `json:"items,omitempty"`
	TotalPrice     int64             `json:"totalPrice,omitempty"`
	Date           string            `json:"date,omitempty"`
	Time           string            `json:"time,omitempty"`
	Guests         int               `json:"guests,omitempty"`
	SpecialRequest string            `json:"specialRequest,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	Message        string            `json:"message,omitempty"`
}

// Notification is the sendNotification payload.
type Notification struct {
	Type      Type    `json:"type"`
	UserEmail string  `json:"userEmail"`
	UserName  string  `json:"userName"`
	Details   Details `json:"details"`
}

func (n Notification) Validate() error {
	switch n.Type {
	case TypeOrder, TypeBooking, TypeInquiry:
	default:
		return fmt.Errorf("%w: unknown type %q", domain.ErrInvalidNotification, n.Type)
	}
	if strings.TrimSpace(n.UserEmail) == "" {
		return fmt.Errorf("%w: userEmail is required", domain.ErrInvalidNotification)
	}
	if _, err := mail.ParseAddress(n.UserEmail); err != nil {
		return fmt.Errorf("%w: userEmail: %v", domain.ErrInvalidNotification, err)
	}
	return nil
}

// Email is one rendered message ready for a Sender.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}
