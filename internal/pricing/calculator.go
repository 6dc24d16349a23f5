package pricing

import (
	"fmt"

	"diggin-checkout/internal/domain"
)

const MaxItemQuantity = 50

// Calculator derives every charged amount. Checkout prices against the
// catalog; settlement recomputes from what checkout stored.
type Calculator struct {
	catalog     *Catalog
	feePerGuest int64
	maxGuests   int
}

func NewCalculator(catalog *Catalog, feePerGuest int64, maxGuests int) *Calculator {
	return &Calculator{
		catalog:     catalog,
		feePerGuest: feePerGuest,
		maxGuests:   maxGuests,
	}
}

// QuoteOrder reprices the items from the catalog and returns them together
// with the total. Client-supplied prices are ignored.
func (c *Calculator) QuoteOrder(items []domain.LineItem) ([]domain.LineItem, int64, error) {
	if len(items) == 0 {
		return nil, 0, fmt.Errorf("%w: no items in order", domain.ErrInvalidOrder)
	}

	priced := make([]domain.LineItem, 0, len(items))
	var total int64
	for _, item := range items {
		if item.Quantity < 1 || item.Quantity > MaxItemQuantity {
			return nil, 0, fmt.Errorf("%w: quantity %d for %q", domain.ErrInvalidOrder, item.Quantity, item.Name)
		}
		name, price, ok := c.catalog.Lookup(item.Name)
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown item %q", domain.ErrInvalidOrder, item.Name)
		}
		priced = append(priced, domain.LineItem{Name: name, Price: price, Quantity: item.Quantity})
		total += price * int64(item.Quantity)
	}
	return priced, total, nil
}

func (c *Calculator) QuoteReservation(guests int) (int64, error) {
	if guests < 1 || guests > c.maxGuests {
		return 0, fmt.Errorf("%w: %d (allowed 1-%d)", domain.ErrInvalidGuestCount, guests, c.maxGuests)
	}
	return int64(guests) * c.feePerGuest, nil
}

// SettlementAmount recomputes the charge from the intent's own payload.
// Stored items carry the unit price fixed at checkout and the stored total
// carries the reservation fee, so a later menu or fee change does not move
// the amount of an order already sent to the gateway.
func (c *Calculator) SettlementAmount(intent *domain.Intent) (int64, error) {
	switch intent.Type {
	case domain.IntentFoodOrder:
		if len(intent.Items) == 0 {
			return 0, fmt.Errorf("%w: no items in order", domain.ErrInvalidOrder)
		}
		var total int64
		for _, item := range intent.Items {
			if item.Quantity < 1 || item.Price < 1 {
				return 0, fmt.Errorf("%w: stored item %q priced %d x %d", domain.ErrInvalidOrder, item.Name, item.Price, item.Quantity)
			}
			total += item.Price * int64(item.Quantity)
		}
		if total != intent.TotalAmount {
			return 0, fmt.Errorf("%w: items sum to %d, intent total is %d", domain.ErrInvalidOrder, total, intent.TotalAmount)
		}
		return total, nil

	case domain.IntentReservation:
		if intent.Booking == nil || intent.Booking.Guests < 1 {
			return 0, fmt.Errorf("%w: reservation without guests", domain.ErrInvalidGuestCount)
		}
		guests := int64(intent.Booking.Guests)
		if intent.TotalAmount < guests || intent.TotalAmount%guests != 0 {
			return 0, fmt.Errorf("%w: total %d is not a per-guest fee for %d guests", domain.ErrInvalidGuestCount, intent.TotalAmount, guests)
		}
		return intent.TotalAmount, nil
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrInvalidIntentType, intent.Type)
}

func (c *Calculator) MaxGuests() int {
	return c.maxGuests
}
