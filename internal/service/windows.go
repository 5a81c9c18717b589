package service

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salonledger/backend/internal/store"
)

const dateLayout = "2006-01-02"

func decimalInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dayWindow returns the reporting window for the day containing t. The
// morning window closes at noon.
func (s *Service) dayWindow(t time.Time) (time.Time, time.Time) {
	start := startOfDay(t)
	if s.opts.DayWindow == DayWindowMorning {
		return start, time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
	}
	return start, start.AddDate(0, 0, 1)
}

func (s *Service) weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) - int(s.opts.WeekStart) + 7) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Calendar dates
// are read in the service location and reported as date-only.
func (s *Service) parseDate(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(dateLayout, raw, s.opts.Location); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.In(s.opts.Location), false, nil
}

func between(from, to time.Time) store.Range {
	return store.Range{From: &from, To: &to}
}

func since(from time.Time) store.Range {
	return store.Range{From: &from}
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}
