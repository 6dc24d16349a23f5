package service

import (
	"context"
	"testing"

	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/repo"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAdminService(f *fixture) AdminService {
	return NewAdminService(f.intents, func(id string) bool { return id == bob.ID }, zap.NewNop())
}

func TestAdmin_ListMine(t *testing.T) {
	f := newFixture(t)
	f.createFoodOrder(t, alice, domain.LineItem{Name: "Latte", Quantity: 1})
	f.createFoodOrder(t, bob, domain.LineItem{Name: "Latte", Quantity: 1})
	svc := newAdminService(f)

	mine, err := svc.ListMine(context.Background(), alice, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, alice.ID, mine[0].OwnerID)

	_, err = svc.ListMine(context.Background(), domain.Principal{}, 10)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAdmin_ListAllRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.createFoodOrder(t, alice, domain.LineItem{Name: "Latte", Quantity: 1})
	svc := newAdminService(f)

	_, err := svc.ListAll(context.Background(), alice, repo.IntentFilter{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	all, err := svc.ListAll(context.Background(), bob, repo.IntentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	none, err := svc.ListAll(context.Background(), bob, repo.IntentFilter{Type: domain.IntentReservation})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.ListAll(context.Background(), bob, repo.IntentFilter{Type: "event"})
	assert.ErrorIs(t, err, domain.ErrInvalidIntentType)
}

func TestAdmin_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	svc := newAdminService(f)

	paid := f.createFoodOrder(t, alice, domain.LineItem{Name: "Latte", Quantity: 1})
	proof := f.pay(t, paid)
	_, err := f.verify.VerifyAndSettle(context.Background(), alice, verification(paid, proof, domain.IntentFoodOrder))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), alice, paid.ReferenceID, domain.StatusDelivered)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.UpdateStatus(context.Background(), bob, paid.ReferenceID, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	intent, err := svc.UpdateStatus(context.Background(), bob, paid.ReferenceID, domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, intent.Status)

	unpaid := f.createFoodOrder(t, alice, domain.LineItem{Name: "Latte", Quantity: 1})
	_, err = svc.UpdateStatus(context.Background(), bob, unpaid.ReferenceID, domain.StatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	intent, err = svc.UpdateStatus(context.Background(), bob, unpaid.ReferenceID, domain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, intent.Status)

	_, err = svc.UpdateStatus(context.Background(), bob, uuid.New(), domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
