package server

import (
	"time"

	"bookbazaar/pkg/domain"
)

// Money fields are rendered as two-decimal strings.

type bookView struct {
	ID        int64     `json:"id"`
	SellerID  int64     `json:"seller_id"`
	Title     string    `json:"title"`
	Price     string    `json:"price"`
	Stock     int       `json:"stock"`
	ImageURL  *string   `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

func newBookView(b domain.Book) bookView {
	v := bookView{
		ID:        b.ID,
		SellerID:  b.SellerID,
		Title:     b.Title,
		Price:     domain.FormatMoney(b.Price),
		Stock:     b.Stock,
		CreatedAt: b.CreatedAt,
	}
	if b.ImageURL != "" {
		url := b.ImageURL
		v.ImageURL = &url
	}
	return v
}

func newBookViews(books []domain.Book) []bookView {
	out := make([]bookView, 0, len(books))
	for _, b := range books {
		out = append(out, newBookView(b))
	}
	return out
}

type saleView struct {
	ID         int64     `json:"id"`
	Quantity   int       `json:"quantity"`
	TotalPrice string    `json:"total_price"`
	SaleDate   time.Time `json:"sale_date"`
	Title      string    `json:"title"`
	Price      string    `json:"price"`
}

func newSaleViews(sales []domain.SaleDetail) []saleView {
	out := make([]saleView, 0, len(sales))
	for _, s := range sales {
		out = append(out, saleView{
			ID:         s.ID,
			Quantity:   s.Quantity,
			TotalPrice: domain.FormatMoney(s.TotalPrice),
			SaleDate:   s.SaleDate,
			Title:      s.Title,
			Price:      domain.FormatMoney(s.UnitPrice),
		})
	}
	return out
}

type summaryView struct {
	TotalRevenue      string `json:"totalRevenue"`
	TotalBooksSold    int64  `json:"totalBooksSold"`
	TotalOrders       int64  `json:"totalOrders"`
	AverageOrderValue string `json:"averageOrderValue"`
}

func newSummaryView(s domain.SalesSummary) summaryView {
	return summaryView{
		TotalRevenue:      domain.FormatMoney(s.TotalRevenue),
		TotalBooksSold:    s.TotalBooksSold,
		TotalOrders:       s.TotalOrders,
		AverageOrderValue: domain.FormatMoney(s.AverageOrderValue),
	}
}

type profileView struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	BookCount    int64     `json:"bookCount"`
	SaleCount    int64     `json:"saleCount"`
	TotalRevenue string    `json:"totalRevenue"`
}

func newProfileView(p domain.ProfileStats) profileView {
	return profileView{
		ID:           p.Seller.ID,
		Name:         p.Seller.Name,
		Email:        p.Seller.Email,
		CreatedAt:    p.Seller.CreatedAt,
		BookCount:    p.BookCount,
		SaleCount:    p.SaleCount,
		TotalRevenue: domain.FormatMoney(p.TotalRevenue),
	}
}

type dashboardView struct {
	TotalBooks   int64  `json:"totalBooks"`
	TotalSales   int64  `json:"totalSales"`
	TotalRevenue string `json:"totalRevenue"`
	AveragePrice string `json:"averagePrice"`
}

func newDashboardView(d domain.DashboardStats) dashboardView {
	return dashboardView{
		TotalBooks:   d.TotalBooks,
		TotalSales:   d.TotalSales,
		TotalRevenue: domain.FormatMoney(d.TotalRevenue),
		AveragePrice: domain.FormatMoney(d.AveragePrice),
	}
}
