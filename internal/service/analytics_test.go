package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonledger/backend/internal/domain"
)

func march(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, time.UTC)
}

// seedDashboard writes a month of activity ending on Wednesday 11 March.
func seedDashboard(t *testing.T, svc *Service, clock *testClock) catalog {
	t.Helper()
	ctx := context.Background()
	c := seedCatalog(t, svc, ownerID)

	createBill := func(at time.Time, req domain.BillRequest) {
		t.Helper()
		clock.set(at)
		_, err := svc.CreateBill(ctx, ownerID, req)
		require.NoError(t, err)
	}
	createStock := func(at time.Time, req domain.InventoryRequest) {
		t.Helper()
		clock.set(at)
		_, err := svc.CreateInventoryItem(ctx, ownerID, req)
		require.NoError(t, err)
	}

	createBill(march(2, 10, 0), cashBill(c.haircut))
	withTea := cashBill(c.facial)
	withTea.Expenditures = []domain.ExpenditureRequest{{Name: "Tea", Amount: money("50")}}
	createBill(march(9, 10, 0), withTea)

	createBill(march(11, 9, 0), cashBill(c.haircut, c.beard))
	withComb := cashBill(c.haircut, c.spa)
	withComb.ProductSales = []domain.ProductSaleRequest{{Name: "Comb", Quantity: 1, UnitPrice: money("100")}}
	createBill(march(11, 11, 0), withComb)
	createBill(march(11, 12, 30), cashBill(c.haircut))

	createStock(march(10, 9, 0), domain.InventoryRequest{
		Name: "Shampoo", Quantity: 2, PricePerUnit: money("100"), PaymentStatus: domain.PaymentStatusPaid,
	})
	createStock(time.Date(2026, time.February, 15, 9, 0, 0, 0, time.UTC), domain.InventoryRequest{
		Name: "Dryer", Quantity: 1, PricePerUnit: money("500"),
	})

	clock.set(march(11, 13, 0))
	return c
}

func TestDashboardAnalyticsFullDay(t *testing.T) {
	svc, _, clock := newTestService(t, Options{})
	seedDashboard(t, svc, clock)

	got, err := svc.DashboardAnalytics(context.Background(), ownerID)
	require.NoError(t, err)

	assert.Equal(t, DayWindowFull, got.DayWindow)
	assert.True(t, got.WindowStart.Equal(march(11, 0, 0)))
	assert.True(t, got.WindowEnd.Equal(march(12, 0, 0)))

	assert.Equal(t, 3, got.TodaysBillsCount)
	assertMoney(t, "2350", got.TodaysTotalSales)
	assertMoney(t, "0", got.TodaysExpenditures)
	require.NotNil(t, got.HighestBillToday)
	assertMoney(t, "1600", got.HighestBillToday.TotalAmount)

	assert.Equal(t, []domain.PackageUsage{
		{Name: "Haircut", Count: 3},
		{Name: "Beard Trim", Count: 1},
		{Name: "Hair Spa", Count: 1},
	}, got.TodaysPackageUsage)
	assert.Equal(t, 5, got.TotalWindowPackages)
	require.NotNil(t, got.MostUsedPackage)
	assert.Equal(t, "Haircut", got.MostUsedPackage.Name)

	assert.Equal(t, 4, got.TotalPackages)
	assert.Equal(t, 5, got.TotalBills)
	assert.Equal(t, 2, got.TotalInventoryItems)
	assertMoney(t, "700", got.InventoryStats.TotalValue)
	assertMoney(t, "200", got.InventoryStats.PaidValue)
	assertMoney(t, "500", got.InventoryStats.UnpaidValue)

	assertMoney(t, "3300", got.ThisWeeksTotalSales)
	assertMoney(t, "200", got.ThisWeeksInventoryExpenses)
	assertMoney(t, "50", got.ThisWeeksExpenditures)
	assertMoney(t, "3050", got.ThisWeeksProfit)

	assertMoney(t, "3600", got.ThisMonthsTotalSales)
	assertMoney(t, "200", got.ThisMonthsInventoryExpenses)
	assertMoney(t, "50", got.ThisMonthsExpenditures)
	assertMoney(t, "3350", got.ThisMonthsProfit)

	require.Len(t, got.DailySales, 11)
	assert.Equal(t, "2026-03-01", got.DailySales[0].Date)
	assertMoney(t, "0", got.DailySales[0].Total)
	assert.Equal(t, 1, got.DailySales[1].Bills)
	assertMoney(t, "950", got.DailySales[8].Total)
	assert.Equal(t, "2026-03-11", got.DailySales[10].Date)
	assert.Equal(t, 3, got.DailySales[10].Bills)
	assertMoney(t, "2350", got.DailySales[10].Total)

	require.Len(t, got.RecentBills, 5)
	assert.True(t, got.RecentBills[0].CreatedAt.Equal(march(11, 12, 30)))
	for _, bill := range got.RecentBills {
		assert.True(t, bill.Editable)
	}
}

func TestDashboardAnalyticsMorningWindow(t *testing.T) {
	svc, _, clock := newTestService(t, Options{DayWindow: DayWindowMorning, RecentBillsInWindow: true})
	seedDashboard(t, svc, clock)

	got, err := svc.DashboardAnalytics(context.Background(), ownerID)
	require.NoError(t, err)

	assert.Equal(t, DayWindowMorning, got.DayWindow)
	assert.True(t, got.WindowEnd.Equal(march(11, 12, 0)))
	assert.Equal(t, 2, got.TodaysBillsCount)
	assertMoney(t, "2050", got.TodaysTotalSales)
	assert.Equal(t, 4, got.TotalWindowPackages)
	require.Len(t, got.RecentBills, 2)
	assert.True(t, got.RecentBills[0].CreatedAt.Equal(march(11, 11, 0)))

	assertMoney(t, "3300", got.ThisWeeksTotalSales)
}

func TestDashboardDayWindowEdges(t *testing.T) {
	tests := []struct {
		window string
		count  int
		sales  string
	}{
		{DayWindowFull, 4, "2550"},
		{DayWindowMorning, 2, "450"},
	}
	for _, tt := range tests {
		t.Run(tt.window, func(t *testing.T) {
			svc, _, clock := newTestService(t, Options{DayWindow: tt.window})
			c := seedCatalog(t, svc, ownerID)
			ctx := context.Background()
			for _, b := range []struct {
				at  time.Time
				pkg domain.Package
			}{
				{march(11, 23, 59), c.spa},
				{march(12, 0, 30), c.haircut},
				{march(12, 11, 59), c.beard},
				{march(12, 12, 1), c.spa},
				{march(12, 23, 0), c.facial},
			} {
				clock.set(b.at)
				_, err := svc.CreateBill(ctx, ownerID, cashBill(b.pkg))
				require.NoError(t, err)
			}
			clock.set(march(12, 23, 30))

			got, err := svc.DashboardAnalytics(ctx, ownerID)
			require.NoError(t, err)

			assert.Equal(t, tt.count, got.TodaysBillsCount)
			assertMoney(t, tt.sales, got.TodaysTotalSales)
		})
	}
}

func TestDashboardAnalyticsWeekStart(t *testing.T) {
	svc, _, clock := newTestService(t, Options{WeekStart: time.Wednesday})
	seedDashboard(t, svc, clock)

	got, err := svc.DashboardAnalytics(context.Background(), ownerID)
	require.NoError(t, err)

	assertMoney(t, "2350", got.ThisWeeksTotalSales)
	assertMoney(t, "0", got.ThisWeeksInventoryExpenses)
	assertMoney(t, "2350", got.ThisWeeksProfit)
}

func TestDashboardAnalyticsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	got, err := svc.DashboardAnalytics(context.Background(), ownerID)
	require.NoError(t, err)

	assert.Nil(t, got.HighestBillToday)
	assert.Nil(t, got.MostUsedPackage)
	assert.Empty(t, got.TodaysPackageUsage)
	assert.NotNil(t, got.TodaysPackageUsage)
	assert.Empty(t, got.RecentBills)
	assertMoney(t, "0", got.ThisMonthsProfit)
	assert.Len(t, got.DailySales, 11)
}

func TestHighestBillKeepsFirstOnTie(t *testing.T) {
	bills := []domain.Bill{
		{ID: "a", TotalAmount: money("0")},
		{ID: "b", TotalAmount: money("500")},
		{ID: "c", TotalAmount: money("500")},
		{ID: "d", TotalAmount: money("200")},
	}
	best := highestBill(bills)
	require.NotNil(t, best)
	assert.Equal(t, "b", best.ID)

	assert.Nil(t, highestBill([]domain.Bill{{ID: "z", TotalAmount: money("0")}}))
}

func TestMostUsedKeepsFirstSeenOnTie(t *testing.T) {
	best := mostUsed([]domain.PackageUsage{{Name: "Facial", Count: 2}, {Name: "Haircut", Count: 2}})
	require.NotNil(t, best)
	assert.Equal(t, "Facial", best.Name)
}
