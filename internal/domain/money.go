package domain

import "github.com/shopspring/decimal"

// PaymentTolerance is the largest accepted gap between a bill's payment
// split and its services total.
var PaymentTolerance = decimal.RequireFromString("0.01")

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Money rounds an amount to two decimal places.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func SumBillItems(items []BillItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.PackagePrice)
	}
	return total
}

func SumProductSales(sales []ProductSale) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.TotalPrice)
	}
	return total
}

func SumExpenditures(expenditures []Expenditure) decimal.Decimal {
	total := decimal.Zero
	for _, exp := range expenditures {
		total = total.Add(exp.Amount)
	}
	return total
}
