package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Seller struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Book is an inventory item. SellerID never changes after creation.
type Book struct {
	ID        int64
	SellerID  int64
	Title     string
	Price     decimal.Decimal
	Stock     int
	ImageURL  string
	CoverKey  string
	CreatedAt time.Time
}

// Sale records a purchase of one book. TotalPrice is fixed at sale time.
type Sale struct {
	ID         int64
	BookID     int64
	Quantity   int
	TotalPrice decimal.Decimal
	SaleDate   time.Time
}

// SaleDetail is a sale joined with the title and current price of its book.
type SaleDetail struct {
	Sale
	Title     string
	UnitPrice decimal.Decimal
}

// BookInput carries caller-supplied book fields before validation.
// Nil pointers mean the field was absent from the request.
type BookInput struct {
	Title    string
	Price    *decimal.Decimal
	Stock    *int
	ImageURL string
}

// ProfileStats is the seller profile enriched with ownership-scoped totals.
type ProfileStats struct {
	Seller       Seller
	BookCount    int64
	SaleCount    int64
	TotalRevenue decimal.Decimal
}

// SalesTotals are the raw aggregates over a seller's sales.
type SalesTotals struct {
	Orders    int64
	BooksSold int64
	Revenue   decimal.Decimal
}

// BookTotals are the raw aggregates over a seller's books.
type BookTotals struct {
	Count    int64
	PriceSum decimal.Decimal
}

// SalesSummary is the seller-facing sales overview.
type SalesSummary struct {
	TotalRevenue      decimal.Decimal
	TotalBooksSold    int64
	TotalOrders       int64
	AverageOrderValue decimal.Decimal
}

// DashboardStats is the overview shown on the seller dashboard.
type DashboardStats struct {
	TotalBooks   int64
	TotalSales   int64
	TotalRevenue decimal.Decimal
	AveragePrice decimal.Decimal
}
