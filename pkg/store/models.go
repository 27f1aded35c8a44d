package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// GORM models used for persistence.
type SellerModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"size:255;not null"`
	Email     string    `gorm:"size:255;uniqueIndex;not null"`
	Password  string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (SellerModel) TableName() string { return "sellers" }

type BookModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	SellerID  int64           `gorm:"not null;index"`
	Title     string          `gorm:"size:255;not null"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Stock     int             `gorm:"not null;default:0"`
	ImageURL  *string         `gorm:"size:500"`
	CoverKey  *string         `gorm:"size:500"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (BookModel) TableName() string { return "books" }

type SaleModel struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	BookID     int64           `gorm:"not null;index"`
	Quantity   int             `gorm:"not null"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	SaleDate   time.Time       `gorm:"not null"`
}

func (SaleModel) TableName() string { return "sales" }
