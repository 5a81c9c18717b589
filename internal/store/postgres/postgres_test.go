package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/store"
)

// arrayConverter lets []string arguments reach the mock the way pgx
// accepts them for ANY($n) filters.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if ids, ok := v.([]string); ok {
		return ids, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Store{db: db}, mock
}

var billColumnNames = []string{
	"id", "user_id", "client_name", "customer_mobile", "attendant_by", "items", "product_sales", "expenditures",
	"upi_amount", "card_amount", "cash_amount", "services_total", "total_amount", "created_at", "updated_at",
}

func TestGetBillReturnsNotFoundForOtherTenant(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM bills WHERE id = \$1 AND user_id = \$2`).
		WithArgs("bill_1", "usr_b").
		WillReturnRows(sqlmock.NewRows(billColumnNames))

	_, err := s.GetBill(context.Background(), "usr_b", "bill_1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBillDecodesLineItems(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM bills WHERE id = \$1 AND user_id = \$2`).
		WithArgs("bill_1", "usr_a").
		WillReturnRows(sqlmock.NewRows(billColumnNames).AddRow(
			"bill_1", "usr_a", "Asha", "+919876543210", "Ravi",
			[]byte(`[{"packageId":"pkg_1","packageName":"Haircut","packagePrice":300,"packageType":"Basic"}]`),
			[]byte(`[]`),
			[]byte(`[{"name":"Tea","amount":20}]`),
			"300.00", "0", "0", "300.00", "320.00", created, created,
		))

	bill, err := s.GetBill(context.Background(), "usr_a", "bill_1")
	require.NoError(t, err)
	require.Len(t, bill.Items, 1)
	assert.Equal(t, "Haircut", bill.Items[0].PackageName)
	assert.True(t, bill.Items[0].PackagePrice.Equal(decimal.NewFromInt(300)))
	assert.Empty(t, bill.ProductSales)
	require.Len(t, bill.Expenditures, 1)
	assert.True(t, bill.TotalAmount.Equal(decimal.NewFromInt(320)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteInventoryItemIsScopedByUser(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM inventory_items WHERE id = \$1 AND user_id = \$2`).
		WithArgs("inv_1", "usr_b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteInventoryItem(context.Background(), "usr_b", "inv_1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.CreateUser(context.Background(), domain.User{Email: "Owner@Salon.test", CreatedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListInventoryAppliesEnteredRange(t *testing.T) {
	s, mock := newMockStore(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	mock.ExpectQuery(`WHERE user_id = \$1 AND date_entered >= \$2 AND date_entered < \$3 ORDER BY created_at DESC`).
		WithArgs("usr_a", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, err := s.ListInventory(context.Background(), "usr_a", store.Range{From: &from, To: &to})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBillWithoutProductSalesSkipsStock(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bills`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bill, err := s.CreateBill(context.Background(), domain.Bill{
		UserID:        "usr_a",
		ClientName:    "Asha",
		AttendantBy:   "Ravi",
		Items:         []domain.BillItem{{PackageID: "pkg_1", PackageName: "Haircut", PackagePrice: decimal.NewFromInt(300), PackageType: domain.PackageTypeBasic}},
		ServicesTotal: decimal.NewFromInt(300),
		TotalAmount:   decimal.NewFromInt(300),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, bill.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBillRollsBackOnInsufficientStock(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM inventory_items WHERE user_id = \$1 AND id = ANY\(\$2\) FOR UPDATE`).
		WithArgs("usr_a", []string{"inv_1"}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity"}).AddRow("inv_1", 1))
	mock.ExpectRollback()

	_, err := s.CreateBill(context.Background(), domain.Bill{
		UserID: "usr_a",
		ProductSales: []domain.ProductSale{{
			InventoryItemID: "inv_1", Name: "Argan Oil", Quantity: 2,
			UnitPrice: decimal.NewFromInt(350), TotalPrice: decimal.NewFromInt(700),
		}},
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBillReturnsProductSalesToStock(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT product_sales, created_at FROM bills WHERE id = \$1 AND user_id = \$2 FOR UPDATE`).
		WithArgs("bill_1", "usr_a").
		WillReturnRows(sqlmock.NewRows([]string{"product_sales", "created_at"}).AddRow(
			[]byte(`[{"inventoryItemId":"inv_1","name":"Argan Oil","quantity":2,"unitPrice":350,"totalPrice":700}]`), created,
		))
	mock.ExpectQuery(`FROM inventory_items WHERE user_id = \$1 AND id = ANY\(\$2\) FOR UPDATE`).
		WithArgs("usr_a", []string{"inv_1"}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity"}).AddRow("inv_1", 3))
	mock.ExpectExec(`UPDATE inventory_items SET quantity = quantity - \$1`).
		WithArgs(-2, "inv_1", "usr_a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM bills WHERE id = \$1 AND user_id = \$2`).
		WithArgs("bill_1", "usr_a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteBill(context.Background(), "usr_a", "bill_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
