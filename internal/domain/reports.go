package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InventoryStats struct {
	TotalValue  decimal.Decimal `json:"totalValue"`
	PaidValue   decimal.Decimal `json:"paidValue"`
	UnpaidValue decimal.Decimal `json:"unpaidValue"`
}

type PackageUsage struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DailySales struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
	Bills int             `json:"bills"`
}

type DashboardAnalytics struct {
	DayWindow   string    `json:"dayWindow"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`

	TodaysTotalSales    decimal.Decimal `json:"todaysTotalSales"`
	TodaysBillsCount    int             `json:"todaysBillsCount"`
	HighestBillToday    *Bill           `json:"highestBillToday"`
	TodaysPackageUsage  []PackageUsage  `json:"todaysPackageUsage"`
	TotalWindowPackages int             `json:"totalWindowPackages"`
	MostUsedPackage     *PackageUsage   `json:"mostUsedPackage"`
	TodaysExpenditures  decimal.Decimal `json:"todaysExpenditures"`

	TotalPackages       int            `json:"totalPackages"`
	TotalBills          int            `json:"totalBills"`
	TotalInventoryItems int            `json:"totalInventoryItems"`
	InventoryStats      InventoryStats `json:"inventoryStats"`

	ThisWeeksTotalSales        decimal.Decimal `json:"thisWeeksTotalSales"`
	ThisWeeksInventoryExpenses decimal.Decimal `json:"thisWeeksInventoryExpenses"`
	ThisWeeksExpenditures      decimal.Decimal `json:"thisWeeksExpenditures"`
	ThisWeeksProfit            decimal.Decimal `json:"thisWeeksProfit"`

	ThisMonthsTotalSales        decimal.Decimal `json:"thisMonthsTotalSales"`
	ThisMonthsInventoryExpenses decimal.Decimal `json:"thisMonthsInventoryExpenses"`
	ThisMonthsExpenditures      decimal.Decimal `json:"thisMonthsExpenditures"`
	ThisMonthsProfit            decimal.Decimal `json:"thisMonthsProfit"`

	DailySales  []DailySales `json:"dailySales"`
	RecentBills []Bill       `json:"recentBills"`
}

type ExpenseQuery struct {
	Period    string
	StartDate string
	EndDate   string
}

type ExpenseSummary struct {
	TotalItems    int             `json:"totalItems"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	UnpaidAmount  decimal.Decimal `json:"unpaidAmount"`
	Items         []InventoryItem `json:"items"`
}

type ExpenseDay struct {
	Date       string          `json:"date"`
	DailyTotal decimal.Decimal `json:"dailyTotal"`
	DailyItems int             `json:"dailyItems"`
}

type ExpenseReport struct {
	Period         string         `json:"period"`
	From           *time.Time     `json:"from,omitempty"`
	To             *time.Time     `json:"to,omitempty"`
	Summary        ExpenseSummary `json:"summary"`
	DailyBreakdown []ExpenseDay   `json:"dailyBreakdown"`
}
