package store

import (
	"context"
	"errors"

	"bookbazaar/pkg/domain"
)

// ErrDuplicateEmail is returned when a seller email is already stored.
var ErrDuplicateEmail = errors.New("seller email already exists")

// ErrSellerNotFound is returned by operations that require an existing seller.
var ErrSellerNotFound = errors.New("seller not found")

// ErrBookNotFound is returned when a sale references a missing book.
var ErrBookNotFound = errors.New("book not found")

// SaleGenerator builds synthetic sales for the given candidate books.
type SaleGenerator func(candidates []domain.Book) []domain.Sale

// SeedCandidateLimit caps how many of a seller's books seeded sales draw from.
const SeedCandidateLimit = 5

// Store defines persistence for sellers, books and sales.
// Every book and sale operation is scoped by the owning seller id.
type Store interface {
	// sellers
	CreateSeller(ctx context.Context, seller domain.Seller) (domain.Seller, error)
	GetSellerByID(ctx context.Context, id int64) (domain.Seller, bool, error)
	GetSellerByEmail(ctx context.Context, email string) (domain.Seller, bool, error)
	EmailTakenByOther(ctx context.Context, email string, sellerID int64) (bool, error)
	UpdateSellerProfile(ctx context.Context, sellerID int64, name, email string) (domain.Seller, bool, error)

	// books
	ListBooks(ctx context.Context, sellerID int64) ([]domain.Book, error)
	GetBook(ctx context.Context, sellerID, bookID int64) (domain.Book, bool, error)
	CreateBook(ctx context.Context, book domain.Book) (domain.Book, error)
	UpdateBook(ctx context.Context, sellerID int64, book domain.Book) (domain.Book, bool, error)
	SetBookCover(ctx context.Context, sellerID, bookID int64, coverKey string) (bool, error)
	DeleteBook(ctx context.Context, sellerID, bookID int64) (bool, error)
	BookTotals(ctx context.Context, sellerID int64) (domain.BookTotals, error)

	// sales
	ListSales(ctx context.Context, sellerID int64) ([]domain.SaleDetail, error)
	SalesTotals(ctx context.Context, sellerID int64) (domain.SalesTotals, error)
	// SeedSalesIfEmpty atomically inserts generated sales when the seller
	// has books but no sales. It returns the number of rows inserted.
	SeedSalesIfEmpty(ctx context.Context, sellerID int64, gen SaleGenerator) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
