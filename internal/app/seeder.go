package app

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bookbazaar/pkg/domain"
)

const (
	seedSalesCount  = 10
	seedMaxQuantity = 5
	seedWindow      = 30 * 24 * time.Hour
)

// Seeder generates demo sales so a new seller sees a populated report.
type Seeder struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewSeeder builds a seeder. Nil src or now fall back to a time-seeded PCG
// and the wall clock.
func NewSeeder(src rand.Source, now func() time.Time) *Seeder {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Seeder{rnd: rand.New(src), now: now}
}

// Generate draws seedSalesCount sales from candidates. Each picks a book
// uniformly, a quantity in [1,5] and a sale date within the last 30 days.
func (s *Seeder) Generate(candidates []domain.Book) []domain.Sale {
	if len(candidates) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sales := make([]domain.Sale, 0, seedSalesCount)
	for i := 0; i < seedSalesCount; i++ {
		book := candidates[s.rnd.IntN(len(candidates))]
		quantity := s.rnd.IntN(seedMaxQuantity) + 1
		age := time.Duration(s.rnd.Int64N(int64(seedWindow)))
		sales = append(sales, domain.Sale{
			BookID:     book.ID,
			Quantity:   quantity,
			TotalPrice: book.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(domain.CurrencyPlaces),
			SaleDate:   now.Add(-age),
		})
	}
	return sales
}
