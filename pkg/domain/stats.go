package domain

import "github.com/shopspring/decimal"

// CurrencyPlaces is the precision of every money value.
const CurrencyPlaces = 2

// Summarize derives the sales summary. The average is zero without orders.
func Summarize(t SalesTotals) SalesSummary {
	out := SalesSummary{
		TotalRevenue:      t.Revenue.Round(CurrencyPlaces),
		TotalBooksSold:    t.BooksSold,
		TotalOrders:       t.Orders,
		AverageOrderValue: decimal.Zero,
	}
	if t.Orders > 0 {
		out.AverageOrderValue = t.Revenue.Div(decimal.NewFromInt(t.Orders)).Round(CurrencyPlaces)
	}
	return out
}

// Dashboard combines book and sales totals. AveragePrice is zero without books.
func Dashboard(books BookTotals, sales SalesTotals) DashboardStats {
	out := DashboardStats{
		TotalBooks:   books.Count,
		TotalSales:   sales.Orders,
		TotalRevenue: sales.Revenue.Round(CurrencyPlaces),
		AveragePrice: decimal.Zero,
	}
	if books.Count > 0 {
		out.AveragePrice = books.PriceSum.Div(decimal.NewFromInt(books.Count)).Round(CurrencyPlaces)
	}
	return out
}

// FormatMoney renders a money value with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(CurrencyPlaces)
}
