package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/store"
)

func seedStock(t *testing.T, s *Store, userID string, qty int) *domain.InventoryItem {
	t.Helper()
	item, err := s.CreateInventoryItem(context.Background(), domain.InventoryItem{
		UserID:        userID,
		Name:          "Argan Oil",
		Quantity:      qty,
		PricePerUnit:  decimal.NewFromInt(200),
		Total:         decimal.NewFromInt(int64(qty) * 200),
		PaymentStatus: domain.PaymentStatusPaid,
		DateEntered:   time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	return item
}

func saleBill(userID string, itemID string, qty int) domain.Bill {
	return domain.Bill{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		ProductSales: []domain.ProductSale{{
			InventoryItemID: itemID,
			Name:            "Argan Oil",
			Quantity:        qty,
			UnitPrice:       decimal.NewFromInt(350),
			TotalPrice:      decimal.NewFromInt(int64(qty) * 350),
		}},
	}
}

func TestNewSeededCreatesVerifiedOwnerAndCatalog(t *testing.T) {
	s, err := NewSeeded("Owner@Example.com", "")
	require.NoError(t, err)

	owner, err := s.GetUserByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	assert.True(t, owner.Verified)

	count, err := s.CountPackages(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := New()
	_, err := s.CreateUser(context.Background(), domain.User{Email: "a@b.co"})
	require.NoError(t, err)

	_, err = s.CreateUser(context.Background(), domain.User{Email: " A@B.co "})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestBillStockIsDrawnAndReturned(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := seedStock(t, s, "usr_a", 5)

	bill, err := s.CreateBill(ctx, saleBill("usr_a", item.ID, 3))
	require.NoError(t, err)

	stocked, err := s.GetInventoryItem(ctx, "usr_a", item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stocked.Quantity)

	edited := saleBill("usr_a", item.ID, 5)
	edited.ID = bill.ID
	_, err = s.UpdateBill(ctx, edited)
	require.NoError(t, err)
	stocked, _ = s.GetInventoryItem(ctx, "usr_a", item.ID)
	assert.Equal(t, 0, stocked.Quantity)

	require.NoError(t, s.DeleteBill(ctx, "usr_a", bill.ID))
	stocked, _ = s.GetInventoryItem(ctx, "usr_a", item.ID)
	assert.Equal(t, 5, stocked.Quantity)
}

func TestCreateBillFailsWithoutStockAndWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := seedStock(t, s, "usr_a", 1)

	_, err := s.CreateBill(ctx, saleBill("usr_a", item.ID, 2))
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	count, _ := s.CountBills(ctx, "usr_a")
	assert.Zero(t, count)

	_, err = s.CreateBill(ctx, saleBill("usr_b", item.ID, 1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListBillsOrdersNewestFirstAndScopesByUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := s.CreateBill(ctx, domain.Bill{UserID: "usr_a", CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	_, err := s.CreateBill(ctx, domain.Bill{UserID: "usr_b", CreatedAt: base})
	require.NoError(t, err)

	bills, err := s.ListBills(ctx, "usr_a", 3)
	require.NoError(t, err)
	require.Len(t, bills, 3)
	assert.True(t, bills[0].CreatedAt.After(bills[1].CreatedAt))
	assert.True(t, bills[1].CreatedAt.After(bills[2].CreatedAt))

	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	window, err := s.ListBillsCreated(ctx, "usr_a", store.Range{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.True(t, window[0].CreatedAt.Before(window[1].CreatedAt))
}

func TestScopedMutationsReturnNotFoundForOtherTenants(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := seedStock(t, s, "usr_a", 2)
	bill, err := s.CreateBill(ctx, domain.Bill{UserID: "usr_a", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteBill(ctx, "usr_b", bill.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteInventoryItem(ctx, "usr_b", item.ID), store.ErrNotFound)
	_, err = s.GetBill(ctx, "usr_b", bill.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
