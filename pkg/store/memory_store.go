package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bookbazaar/pkg/domain"
)

// MemoryStore keeps sellers, books and sales in-process.
// It backs development mode without a database and the test suites.
type MemoryStore struct {
	mu      sync.RWMutex
	sellers map[int64]domain.Seller
	email   map[string]int64 // email -> seller ID
	books   map[int64]domain.Book
	sales   map[int64]domain.Sale
	nextID  struct{ seller, book, sale int64 }
	now     func() time.Time
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sellers: make(map[int64]domain.Seller),
		email:   make(map[string]int64),
		books:   make(map[int64]domain.Book),
		sales:   make(map[int64]domain.Sale),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) CreateSeller(_ context.Context, seller domain.Seller) (domain.Seller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.email[seller.Email]; exists {
		return domain.Seller{}, ErrDuplicateEmail
	}
	m.nextID.seller++
	seller.ID = m.nextID.seller
	if seller.CreatedAt.IsZero() {
		seller.CreatedAt = m.now()
	}
	m.sellers[seller.ID] = seller
	m.email[seller.Email] = seller.ID
	return seller, nil
}

func (m *MemoryStore) GetSellerByID(_ context.Context, id int64) (domain.Seller, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seller, ok := m.sellers[id]
	return seller, ok, nil
}

func (m *MemoryStore) GetSellerByEmail(_ context.Context, email string) (domain.Seller, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.Seller{}, false, nil
	}
	return m.sellers[id], true, nil
}

func (m *MemoryStore) EmailTakenByOther(_ context.Context, email string, sellerID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	return ok && id != sellerID, nil
}

func (m *MemoryStore) UpdateSellerProfile(_ context.Context, sellerID int64, name, email string) (domain.Seller, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seller, ok := m.sellers[sellerID]
	if !ok {
		return domain.Seller{}, false, nil
	}
	if id, taken := m.email[email]; taken && id != sellerID {
		return domain.Seller{}, false, ErrDuplicateEmail
	}
	delete(m.email, seller.Email)
	seller.Name = name
	seller.Email = email
	m.sellers[sellerID] = seller
	m.email[email] = sellerID
	return seller, true, nil
}

// ListBooks returns the seller's books newest first; ties break on id.
func (m *MemoryStore) ListBooks(_ context.Context, sellerID int64) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.booksOf(sellerID, func(a, b domain.Book) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}), nil
}

func (m *MemoryStore) GetBook(_ context.Context, sellerID, bookID int64) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[bookID]
	if !ok || book.SellerID != sellerID {
		return domain.Book{}, false, nil
	}
	return book, true, nil
}

func (m *MemoryStore) CreateBook(_ context.Context, book domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sellers[book.SellerID]; !ok {
		return domain.Book{}, ErrSellerNotFound
	}
	m.nextID.book++
	book.ID = m.nextID.book
	book.ImageURL = strings.TrimSpace(book.ImageURL)
	if book.CreatedAt.IsZero() {
		book.CreatedAt = m.now()
	}
	m.books[book.ID] = book
	return book, nil
}

func (m *MemoryStore) UpdateBook(_ context.Context, sellerID int64, book domain.Book) (domain.Book, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.books[book.ID]
	if !ok || current.SellerID != sellerID {
		return domain.Book{}, false, nil
	}
	current.Title = book.Title
	current.Price = book.Price
	current.Stock = book.Stock
	current.ImageURL = strings.TrimSpace(book.ImageURL)
	m.books[book.ID] = current
	return current, true, nil
}

func (m *MemoryStore) SetBookCover(_ context.Context, sellerID, bookID int64, coverKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[bookID]
	if !ok || book.SellerID != sellerID {
		return false, nil
	}
	book.CoverKey = coverKey
	m.books[bookID] = book
	return true, nil
}

// DeleteBook removes an owned book and cascades to its sales.
func (m *MemoryStore) DeleteBook(_ context.Context, sellerID, bookID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[bookID]
	if !ok || book.SellerID != sellerID {
		return false, nil
	}
	delete(m.books, bookID)
	for id, sale := range m.sales {
		if sale.BookID == bookID {
			delete(m.sales, id)
		}
	}
	return true, nil
}

func (m *MemoryStore) BookTotals(_ context.Context, sellerID int64) (domain.BookTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := domain.BookTotals{PriceSum: decimal.Zero}
	for _, book := range m.books {
		if book.SellerID != sellerID {
			continue
		}
		out.Count++
		out.PriceSum = out.PriceSum.Add(book.Price)
	}
	return out, nil
}

// ListSales returns the seller's sales newest first.
func (m *MemoryStore) ListSales(_ context.Context, sellerID int64) ([]domain.SaleDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SaleDetail, 0)
	for _, sale := range m.sales {
		book, ok := m.books[sale.BookID]
		if !ok || book.SellerID != sellerID {
			continue
		}
		out = append(out, domain.SaleDetail{Sale: sale, Title: book.Title, UnitPrice: book.Price})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SaleDate.Equal(out[j].SaleDate) {
			return out[i].SaleDate.After(out[j].SaleDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) SalesTotals(_ context.Context, sellerID int64) (domain.SalesTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.salesTotals(sellerID), nil
}

// SeedSalesIfEmpty runs the check and the inserts under one write lock.
func (m *MemoryStore) SeedSalesIfEmpty(_ context.Context, sellerID int64, gen SaleGenerator) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sellers[sellerID]; !ok {
		return 0, ErrSellerNotFound
	}
	if m.salesTotals(sellerID).Orders > 0 {
		return 0, nil
	}
	candidates := m.booksOf(sellerID, func(a, b domain.Book) bool { return a.ID < b.ID })
	if len(candidates) == 0 {
		return 0, nil
	}
	if len(candidates) > SeedCandidateLimit {
		candidates = candidates[:SeedCandidateLimit]
	}
	sales := gen(candidates)
	for _, sale := range sales {
		m.nextID.sale++
		sale.ID = m.nextID.sale
		m.sales[sale.ID] = sale
	}
	return len(sales), nil
}

// AddSale stores a sale for an existing book.
func (m *MemoryStore) AddSale(sale domain.Sale) (domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[sale.BookID]; !ok {
		return domain.Sale{}, ErrBookNotFound
	}
	m.nextID.sale++
	sale.ID = m.nextID.sale
	if sale.SaleDate.IsZero() {
		sale.SaleDate = m.now()
	}
	m.sales[sale.ID] = sale
	return sale, nil
}

func (m *MemoryStore) salesTotals(sellerID int64) domain.SalesTotals {
	out := domain.SalesTotals{Revenue: decimal.Zero}
	for _, sale := range m.sales {
		book, ok := m.books[sale.BookID]
		if !ok || book.SellerID != sellerID {
			continue
		}
		out.Orders++
		out.BooksSold += int64(sale.Quantity)
		out.Revenue = out.Revenue.Add(sale.TotalPrice)
	}
	return out
}

func (m *MemoryStore) booksOf(sellerID int64, less func(a, b domain.Book) bool) []domain.Book {
	out := make([]domain.Book, 0)
	for _, book := range m.books {
		if book.SellerID == sellerID {
			out = append(out, book)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
