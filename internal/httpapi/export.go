package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"salonledger/backend/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var expenseItemHeadings = []string{"Date Entered", "Name", "Brand", "Category", "Quantity", "Price Per Unit", "Total", "Payment Status"}

// Item dates use the same calendar location as the daily breakdown.
func expenseItemRow(item domain.InventoryItem, loc *time.Location) []any {
	return []any{
		item.DateEntered.In(loc).Format("2006-01-02"),
		item.Name,
		item.BrandName,
		item.Category,
		item.Quantity,
		item.PricePerUnit.InexactFloat64(),
		item.Total.InexactFloat64(),
		item.PaymentStatus,
	}
}

func expenseReportToCSV(report domain.ExpenseReport, loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{expenseItemHeadings}
	for _, item := range report.Summary.Items {
		rows = append(rows, []string{
			item.DateEntered.In(loc).Format("2006-01-02"),
			item.Name,
			item.BrandName,
			item.Category,
			strconv.Itoa(item.Quantity),
			item.PricePerUnit.StringFixed(2),
			item.Total.StringFixed(2),
			item.PaymentStatus,
		})
	}
	rows = append(rows,
		[]string{},
		[]string{"Total Items", strconv.Itoa(report.Summary.TotalItems)},
		[]string{"Total Quantity", strconv.Itoa(report.Summary.TotalQuantity)},
		[]string{"Total Amount", report.Summary.TotalAmount.StringFixed(2)},
		[]string{"Paid Amount", report.Summary.PaidAmount.StringFixed(2)},
		[]string{"Unpaid Amount", report.Summary.UnpaidAmount.StringFixed(2)},
	)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// expenseReportToXLSX lays the report out as an items sheet and a daily
// breakdown sheet.
func expenseReportToXLSX(report domain.ExpenseReport, loc *time.Location) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fillExpenseWorkbook(f, report, loc); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func fillExpenseWorkbook(f *excelize.File, report domain.ExpenseReport, loc *time.Location) error {
	const items = "Items"
	const daily = "Daily"
	if err := f.SetSheetName("Sheet1", items); err != nil {
		return err
	}
	if _, err := f.NewSheet(daily); err != nil {
		return err
	}

	itemRows := [][]any{toAny(expenseItemHeadings)}
	for _, item := range report.Summary.Items {
		itemRows = append(itemRows, expenseItemRow(item, loc))
	}
	itemRows = append(itemRows,
		[]any{},
		[]any{"Total Amount", report.Summary.TotalAmount.InexactFloat64()},
		[]any{"Paid Amount", report.Summary.PaidAmount.InexactFloat64()},
		[]any{"Unpaid Amount", report.Summary.UnpaidAmount.InexactFloat64()},
	)
	if err := writeSheet(f, items, itemRows); err != nil {
		return err
	}

	dailyRows := [][]any{{"Date", "Items", "Total"}}
	for _, day := range report.DailyBreakdown {
		dailyRows = append(dailyRows, []any{day.Date, day.DailyItems, day.DailyTotal.InexactFloat64()})
	}
	return writeSheet(f, daily, dailyRows)
}

func writeSheet(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
