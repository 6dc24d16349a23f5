package domain

// CanTransition is the operator-facing status table. Confirmed is reachable
// only through settlement, and a paid intent is never cancelled.
func CanTransition(i *Intent, to Status) bool {
	switch {
	case i.Status == StatusPending && to == StatusCancelled:
		return !i.IsPaid()
	case i.Status == StatusConfirmed && to == StatusDelivered:
		return i.Type == IntentFoodOrder
	case i.Status == StatusConfirmed && to == StatusCompleted:
		return i.Type == IntentReservation
	}
	return false
}
