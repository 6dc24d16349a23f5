package repo

import (
	"context"
	"testing"
	"time"

	"diggin-checkout/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFoodIntent(owner string, createdAt time.Time) *domain.Intent {
	return &domain.Intent{
		ID:            uuid.New(),
		OwnerID:       owner,
		Type:          domain.IntentFoodOrder,
		Items:         []domain.LineItem{{Name: "Latte", Price: 280, Quantity: 2}},
		TotalAmount:   560,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func newAudit(intent *domain.Intent, gatewayOrderID string) *domain.Payment {
	return &domain.Payment{
		ID:             uuid.New(),
		ReferenceID:    intent.ID,
		ReferenceType:  intent.Type.ReferenceType(),
		OwnerID:        intent.OwnerID,
		Amount:         intent.TotalAmount,
		Currency:       "INR",
		Status:         domain.PaymentPending,
		GatewayOrderID: gatewayOrderID,
		CreatedAt:      intent.CreatedAt,
		UpdatedAt:      intent.CreatedAt,
	}
}

// runRepoContract exercises behaviour every repository implementation must
// share.
func runRepoContract(t *testing.T, intents IntentRepo, payments PaymentRepo) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)

	t.Run("find missing intent returns nil", func(t *testing.T) {
		got, err := intents.FindById(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("reservation round trip", func(t *testing.T) {
		intent := &domain.Intent{
			ID:            uuid.New(),
			OwnerID:       "user-res",
			Type:          domain.IntentReservation,
			Booking:       &domain.Booking{Guests: 5, Name: "Asha", Date: "2026-11-02", Time: "19:30", Contact: "98xxxx"},
			TotalAmount:   100,
			Status:        domain.StatusPending,
			PaymentStatus: domain.PaymentPending,
			CreatedAt:     base,
			UpdatedAt:     base,
		}
		require.NoError(t, intents.CreateIntent(ctx, nil, intent))

		got, err := intents.FindById(ctx, intent.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NotNil(t, got.Booking)
		assert.Equal(t, 5, got.Booking.Guests)
		assert.Equal(t, "19:30", got.Booking.Time)
		assert.Equal(t, int64(100), got.TotalAmount)
		assert.Empty(t, got.GatewayOrderID)
	})

	t.Run("settle applies once", func(t *testing.T) {
		intent := newFoodIntent("user-a", base)
		require.NoError(t, intents.CreateIntent(ctx, nil, intent))
		require.NoError(t, intents.AttachGatewayOrder(ctx, nil, intent.ID, "order_settle"))
		require.NoError(t, payments.CreatePayment(ctx, nil, newAudit(intent, "order_settle")))

		first := domain.Settlement{
			GatewayOrderID:   "order_settle",
			GatewayPaymentID: "pay_1",
			Signature:        "sig",
			Method:           "upi",
			Amount:           560,
			PaidAt:           base.Add(time.Minute),
		}
		ok, err := intents.Settle(ctx, nil, intent.ID, first)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = intents.Settle(ctx, nil, intent.ID, first)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := intents.FindById(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, got.Status)
		assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
		assert.Equal(t, "pay_1", got.GatewayPaymentID)
		require.NotNil(t, got.AmountPaid)
		assert.Equal(t, int64(560), *got.AmountPaid)

		ok, err = payments.MarkPaid(ctx, nil, first)
		require.NoError(t, err)
		assert.True(t, ok)

		replay := first
		replay.PaidAt = base.Add(2 * time.Minute)
		ok, err = payments.MarkPaid(ctx, nil, replay)
		require.NoError(t, err)
		assert.True(t, ok)

		other := first
		other.GatewayPaymentID = "pay_2"
		ok, err = payments.MarkPaid(ctx, nil, other)
		require.NoError(t, err)
		assert.False(t, ok)

		audit, err := payments.FindByGatewayOrderID(ctx, "order_settle")
		require.NoError(t, err)
		require.NotNil(t, audit)
		assert.Equal(t, domain.PaymentPaid, audit.Status)
		assert.Equal(t, "pay_1", audit.GatewayPaymentID)
		require.NotNil(t, audit.PaidAt)
		assert.True(t, audit.PaidAt.Equal(first.PaidAt))
	})

	t.Run("abandon only unpaid pending intents", func(t *testing.T) {
		intent := newFoodIntent("user-b", base)
		require.NoError(t, intents.CreateIntent(ctx, nil, intent))

		ok, err := intents.MarkAbandoned(ctx, nil, intent.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = intents.Settle(ctx, nil, intent.ID, domain.Settlement{GatewayPaymentID: "pay_x", PaidAt: base})
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := intents.FindById(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, got.Status)
		assert.Equal(t, domain.PaymentFailed, got.PaymentStatus)
	})

	t.Run("update status checks current status", func(t *testing.T) {
		intent := newFoodIntent("user-c", base)
		require.NoError(t, intents.CreateIntent(ctx, nil, intent))

		ok, err := intents.UpdateStatus(ctx, nil, intent.ID, domain.StatusConfirmed, domain.StatusDelivered)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = intents.UpdateStatus(ctx, nil, intent.ID, domain.StatusPending, domain.StatusCancelled)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("queries", func(t *testing.T) {
		owner := "user-list-" + uuid.NewString()
		older := newFoodIntent(owner, base.Add(-30*time.Minute))
		newer := newFoodIntent(owner, base.Add(-10*time.Minute))
		require.NoError(t, intents.CreateIntent(ctx, nil, older))
		require.NoError(t, intents.CreateIntent(ctx, nil, newer))
		require.NoError(t, payments.CreatePayment(ctx, nil, newAudit(newer, "order_"+newer.ID.String()[:8])))
		require.NoError(t, intents.AttachGatewayOrder(ctx, nil, newer.ID, "order_"+newer.ID.String()[:8]))

		mine, err := intents.ListByOwner(ctx, owner, 10)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, newer.ID, mine[0].ID)

		unsubmitted, err := intents.FindUnsubmittedBefore(ctx, base, 100)
		require.NoError(t, err)
		assert.True(t, containsIntent(unsubmitted, older.ID))
		assert.False(t, containsIntent(unsubmitted, newer.ID))

		reservations, err := intents.List(ctx, IntentFilter{Type: domain.IntentReservation, Limit: 100})
		require.NoError(t, err)
		for _, r := range reservations {
			assert.Equal(t, domain.IntentReservation, r.Type)
		}

		pending, err := payments.FindPendingBefore(ctx, base, 100)
		require.NoError(t, err)
		found := false
		for _, p := range pending {
			found = found || p.ReferenceID == newer.ID
		}
		assert.True(t, found)

		ok, err := payments.MarkFailed(ctx, nil, "order_"+newer.ID.String()[:8])
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = payments.MarkFailed(ctx, nil, "order_"+newer.ID.String()[:8])
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("attach to missing intent", func(t *testing.T) {
		err := intents.AttachGatewayOrder(ctx, nil, uuid.New(), "order_none")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func containsIntent(list []domain.Intent, id uuid.UUID) bool {
	for _, i := range list {
		if i.ID == id {
			return true
		}
	}
	return false
}

func TestMemoryRepos(t *testing.T) {
	runRepoContract(t, NewMemoryIntentRepo(), NewMemoryPaymentRepo())
}

func TestMemoryPaymentRepo_RejectsDuplicateGatewayOrder(t *testing.T) {
	payments := NewMemoryPaymentRepo()
	intent := newFoodIntent("user", time.Now())
	require.NoError(t, payments.CreatePayment(context.Background(), nil, newAudit(intent, "order_dup")))
	assert.Error(t, payments.CreatePayment(context.Background(), nil, newAudit(intent, "order_dup")))
	assert.Equal(t, 1, payments.Len())
}
