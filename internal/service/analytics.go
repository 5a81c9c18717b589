package service

import (
	"context"

	"github.com/shopspring/decimal"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/store"
)

func (s *Service) DashboardAnalytics(ctx context.Context, userID string) (*domain.DashboardAnalytics, error) {
	now := s.now()
	loc := s.opts.Location
	dayStart, dayEnd := s.dayWindow(now)
	week := since(s.weekStart(now))
	month := since(monthStart(now))

	windowBills, err := s.repo.ListBillsCreated(ctx, userID, between(dayStart, dayEnd))
	if err != nil {
		return nil, err
	}
	weekBills, err := s.repo.ListBillsCreated(ctx, userID, week)
	if err != nil {
		return nil, err
	}
	monthBills, err := s.repo.ListBillsCreated(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	inventory, err := s.repo.ListInventory(ctx, userID, store.Range{})
	if err != nil {
		return nil, err
	}
	totalPackages, err := s.repo.CountPackages(ctx, userID)
	if err != nil {
		return nil, err
	}
	totalBills, err := s.repo.CountBills(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.ListBills(ctx, userID, s.opts.EditRecentLimit)
	if err != nil {
		return nil, err
	}

	out := &domain.DashboardAnalytics{
		DayWindow:           s.opts.DayWindow,
		WindowStart:         dayStart,
		WindowEnd:           dayEnd,
		TodaysBillsCount:    len(windowBills),
		TodaysPackageUsage:  []domain.PackageUsage{},
		TotalPackages:       totalPackages,
		TotalBills:          totalBills,
		TotalInventoryItems: len(inventory),
		DailySales:          []domain.DailySales{},
		RecentBills:         []domain.Bill{},
	}

	sales, expenditures := sumBills(windowBills)
	out.TodaysTotalSales = sales
	out.TodaysExpenditures = expenditures
	out.HighestBillToday = highestBill(windowBills)
	out.TodaysPackageUsage, out.TotalWindowPackages = packageUsage(windowBills)
	out.MostUsedPackage = mostUsed(out.TodaysPackageUsage)

	out.InventoryStats = inventoryStats(inventory)

	sales, expenditures = sumBills(weekBills)
	stock := inventorySpend(inventory, week)
	out.ThisWeeksTotalSales = sales
	out.ThisWeeksInventoryExpenses = stock
	out.ThisWeeksExpenditures = expenditures
	out.ThisWeeksProfit = sales.Sub(stock).Sub(expenditures)

	sales, expenditures = sumBills(monthBills)
	stock = inventorySpend(inventory, month)
	out.ThisMonthsTotalSales = sales
	out.ThisMonthsInventoryExpenses = stock
	out.ThisMonthsExpenditures = expenditures
	out.ThisMonthsProfit = sales.Sub(stock).Sub(expenditures)

	byDay := make(map[string]*domain.DailySales)
	for day := monthStart(now); !day.After(now); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		out.DailySales = append(out.DailySales, domain.DailySales{Date: key, Total: decimal.Zero})
	}
	for i := range out.DailySales {
		byDay[out.DailySales[i].Date] = &out.DailySales[i]
	}
	for _, bill := range monthBills {
		if entry, ok := byDay[dayKey(bill.CreatedAt, loc)]; ok {
			entry.Total = entry.Total.Add(bill.TotalAmount)
			entry.Bills++
		}
	}

	window := between(dayStart, dayEnd)
	for rank, bill := range recent {
		if s.opts.RecentBillsInWindow && !window.Contains(bill.CreatedAt) {
			continue
		}
		bill.Editable = s.editableAt(bill, rank)
		out.RecentBills = append(out.RecentBills, bill)
	}
	return out, nil
}

func sumBills(bills []domain.Bill) (decimal.Decimal, decimal.Decimal) {
	sales := decimal.Zero
	expenditures := decimal.Zero
	for _, bill := range bills {
		sales = sales.Add(bill.TotalAmount)
		expenditures = expenditures.Add(domain.SumExpenditures(bill.Expenditures))
	}
	return sales, expenditures
}

// highestBill keeps the first bill reaching the top amount. Bills arrive
// oldest first.
func highestBill(bills []domain.Bill) *domain.Bill {
	var best *domain.Bill
	top := decimal.Zero
	for i := range bills {
		if bills[i].TotalAmount.GreaterThan(top) {
			top = bills[i].TotalAmount
			best = &bills[i]
		}
	}
	if best == nil {
		return nil
	}
	highest := *best
	return &highest
}

func packageUsage(bills []domain.Bill) ([]domain.PackageUsage, int) {
	usage := []domain.PackageUsage{}
	index := make(map[string]int)
	total := 0
	for _, bill := range bills {
		for _, item := range bill.Items {
			total++
			if i, ok := index[item.PackageName]; ok {
				usage[i].Count++
				continue
			}
			index[item.PackageName] = len(usage)
			usage = append(usage, domain.PackageUsage{Name: item.PackageName, Count: 1})
		}
	}
	return usage, total
}

func mostUsed(usage []domain.PackageUsage) *domain.PackageUsage {
	if len(usage) == 0 {
		return nil
	}
	best := usage[0]
	for _, u := range usage[1:] {
		if u.Count > best.Count {
			best = u
		}
	}
	return &best
}

func inventoryStats(items []domain.InventoryItem) domain.InventoryStats {
	stats := domain.InventoryStats{
		TotalValue:  decimal.Zero,
		PaidValue:   decimal.Zero,
		UnpaidValue: decimal.Zero,
	}
	for _, item := range items {
		stats.TotalValue = stats.TotalValue.Add(item.Total)
		if item.PaymentStatus == domain.PaymentStatusPaid {
			stats.PaidValue = stats.PaidValue.Add(item.Total)
		} else {
			stats.UnpaidValue = stats.UnpaidValue.Add(item.Total)
		}
	}
	return stats
}

func inventorySpend(items []domain.InventoryItem, entered store.Range) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if entered.Contains(item.DateEntered) {
			total = total.Add(item.Total)
		}
	}
	return total
}
