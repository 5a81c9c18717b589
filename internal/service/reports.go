package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/store"
)

const (
	PeriodAll       = "all"
	PeriodYesterday = "yesterday"
	PeriodLastWeek  = "lastWeek"
	PeriodLastMonth = "lastMonth"
	PeriodLastYear  = "lastYear"
	PeriodCustom    = "custom"
)

// ExpenseReport summarises inventory purchases entered during a period.
func (s *Service) ExpenseReport(ctx context.Context, userID string, query domain.ExpenseQuery) (*domain.ExpenseReport, error) {
	period := strings.TrimSpace(query.Period)
	if period == "" {
		period = PeriodAll
	}
	from, to, err := s.periodBounds(period, query.StartDate, query.EndDate)
	if err != nil {
		return nil, err
	}

	entered := store.Range{}
	if from != nil {
		entered.From = from
	}
	if to != nil {
		end := to.Add(time.Nanosecond)
		entered.To = &end
	}
	items, err := s.repo.ListInventory(ctx, userID, entered)
	if err != nil {
		return nil, err
	}

	report := &domain.ExpenseReport{
		Period: period,
		From:   from,
		To:     to,
		Summary: domain.ExpenseSummary{
			TotalAmount:  decimal.Zero,
			PaidAmount:   decimal.Zero,
			UnpaidAmount: decimal.Zero,
			Items:        []domain.InventoryItem{},
		},
		DailyBreakdown: []domain.ExpenseDay{},
	}

	byDay := make(map[string]int)
	for _, item := range items {
		summary := &report.Summary
		summary.TotalItems++
		summary.TotalQuantity += item.Quantity
		summary.TotalAmount = summary.TotalAmount.Add(item.Total)
		if item.PaymentStatus == domain.PaymentStatusPaid {
			summary.PaidAmount = summary.PaidAmount.Add(item.Total)
		} else {
			summary.UnpaidAmount = summary.UnpaidAmount.Add(item.Total)
		}
		summary.Items = append(summary.Items, item)

		key := dayKey(item.DateEntered, s.opts.Location)
		i, ok := byDay[key]
		if !ok {
			i = len(report.DailyBreakdown)
			byDay[key] = i
			report.DailyBreakdown = append(report.DailyBreakdown, domain.ExpenseDay{Date: key, DailyTotal: decimal.Zero})
		}
		report.DailyBreakdown[i].DailyTotal = report.DailyBreakdown[i].DailyTotal.Add(item.Total)
		report.DailyBreakdown[i].DailyItems++
	}
	sort.Slice(report.DailyBreakdown, func(i, j int) bool {
		return report.DailyBreakdown[i].Date < report.DailyBreakdown[j].Date
	})
	return report, nil
}

// periodBounds resolves a named period to inclusive bounds. A nil bound is
// open.
func (s *Service) periodBounds(period, startDate, endDate string) (*time.Time, *time.Time, error) {
	now := s.now()
	switch period {
	case PeriodAll:
		return nil, nil, nil
	case PeriodYesterday:
		today := startOfDay(now)
		from := today.AddDate(0, 0, -1)
		to := today.Add(-time.Nanosecond)
		return &from, &to, nil
	case PeriodLastWeek:
		from := now.AddDate(0, 0, -7)
		return &from, &now, nil
	case PeriodLastMonth:
		from := now.AddDate(0, -1, 0)
		return &from, &now, nil
	case PeriodLastYear:
		from := now.AddDate(-1, 0, 0)
		return &from, &now, nil
	case PeriodCustom:
		if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
			return nil, nil, invalid("startDate and endDate are required for a custom period")
		}
		from, _, err := s.parseDate(startDate)
		if err != nil {
			return nil, nil, invalid("startDate must be YYYY-MM-DD or RFC3339")
		}
		to, dateOnly, err := s.parseDate(endDate)
		if err != nil {
			return nil, nil, invalid("endDate must be YYYY-MM-DD or RFC3339")
		}
		if dateOnly {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		if from.After(to) {
			return nil, nil, invalid("startDate must not be after endDate")
		}
		return &from, &to, nil
	default:
		return nil, nil, invalid("unknown period %q", period)
	}
}
