package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookbazaar/pkg/domain"
)

const migrateLockID int64 = 50210417

// GormStoreOptions tunes the connection pool.
type GormStoreOptions struct {
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

type GormStoreOption func(*GormStoreOptions)

// WithMaxOpenConns bounds the number of pooled connections.
func WithMaxOpenConns(n int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.MaxOpenConns = n
	}
}

// WithConnMaxIdleTime closes connections idle for longer than d.
func WithConnMaxIdleTime(d time.Duration) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.ConnMaxIdleTime = d
	}
}

// WithConnectTimeout bounds how long a new connection may take.
func WithConnectTimeout(d time.Duration) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.ConnectTimeout = d
	}
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, configures the pool and runs auto-migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{
		MaxOpenConns:    20,
		ConnMaxIdleTime: 30 * time.Second,
		ConnectTimeout:  10 * time.Second,
	}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}

	db, err := gorm.Open(postgres.Open(withDSNDefaults(dsn, opts.ConnectTimeout)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	if err := withMigrationLock(db, migrate); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an already opened connection without migrating.
func NewGormStoreFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func gormConfig() *gorm.Config {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// withDSNDefaults pins the session time zone and connect timeout unless the
// DSN already sets them. Both URL and key/value DSNs are accepted.
func withDSNDefaults(dsn string, connectTimeout time.Duration) string {
	dsn = strings.TrimSpace(dsn)
	timeoutSecs := fmt.Sprintf("%d", int(connectTimeout.Seconds()))
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		if q.Get("connect_timeout") == "" && connectTimeout > 0 {
			q.Set("connect_timeout", timeoutSecs)
		}
		if q.Get("timezone") == "" && q.Get("TimeZone") == "" {
			q.Set("timezone", "UTC")
		}
		u.RawQuery = q.Encode()
		return u.String()
	}
	lower := strings.ToLower(dsn)
	if !strings.Contains(lower, "connect_timeout=") && connectTimeout > 0 {
		dsn += " connect_timeout=" + timeoutSecs
	}
	if !strings.Contains(lower, "timezone=") {
		dsn += " TimeZone=UTC"
	}
	return strings.TrimSpace(dsn)
}

func migrate(tx *gorm.DB) error {
	if err := tx.AutoMigrate(&SellerModel{}, &BookModel{}, &SaleModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := tx.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'books'
				AND constraint_name = 'books_seller_id_fkey'
			) THEN
				ALTER TABLE books
				ADD CONSTRAINT books_seller_id_fkey
				FOREIGN KEY (seller_id) REFERENCES sellers(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'sales'
				AND constraint_name = 'sales_book_id_fkey'
			) THEN
				ALTER TABLE sales
				ADD CONSTRAINT sales_book_id_fkey
				FOREIGN KEY (book_id) REFERENCES books(id) ON DELETE CASCADE;
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("ensure foreign keys: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases every pooled connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateSeller inserts a seller. Duplicate emails yield ErrDuplicateEmail.
func (s *GormStore) CreateSeller(ctx context.Context, seller domain.Seller) (domain.Seller, error) {
	model := sellerToModel(seller)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Seller{}, ErrDuplicateEmail
		}
		return domain.Seller{}, fmt.Errorf("insert seller: %w", err)
	}
	return sellerFromModel(model), nil
}

// GetSellerByID returns a seller by id.
func (s *GormStore) GetSellerByID(ctx context.Context, id int64) (domain.Seller, bool, error) {
	var model SellerModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Seller{}, false, nil
		}
		return domain.Seller{}, false, err
	}
	return sellerFromModel(model), true, nil
}

// GetSellerByEmail looks up a seller by exact email.
func (s *GormStore) GetSellerByEmail(ctx context.Context, email string) (domain.Seller, bool, error) {
	var model SellerModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Seller{}, false, nil
		}
		return domain.Seller{}, false, err
	}
	return sellerFromModel(model), true, nil
}

// EmailTakenByOther reports whether email belongs to a seller other than sellerID.
func (s *GormStore) EmailTakenByOther(ctx context.Context, email string, sellerID int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&SellerModel{}).
		Where("email = ? AND id <> ?", email, sellerID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateSellerProfile changes name and email of the seller.
func (s *GormStore) UpdateSellerProfile(ctx context.Context, sellerID int64, name, email string) (domain.Seller, bool, error) {
	res := s.db.WithContext(ctx).Model(&SellerModel{}).
		Where("id = ?", sellerID).
		Updates(map[string]any{"name": name, "email": email})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return domain.Seller{}, false, ErrDuplicateEmail
		}
		return domain.Seller{}, false, fmt.Errorf("update seller: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Seller{}, false, nil
	}
	return s.GetSellerByID(ctx, sellerID)
}

// ListBooks returns the seller's books, newest first.
func (s *GormStore) ListBooks(ctx context.Context, sellerID int64) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Book, 0, len(models))
	for _, m := range models {
		out = append(out, bookFromModel(m))
	}
	return out, nil
}

// GetBook returns a book only when it belongs to sellerID.
func (s *GormStore) GetBook(ctx context.Context, sellerID, bookID int64) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).
		Where("id = ? AND seller_id = ?", bookID, sellerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// CreateBook inserts a book for book.SellerID.
func (s *GormStore) CreateBook(ctx context.Context, book domain.Book) (domain.Book, error) {
	model := bookToModel(book)
	model.ID = 0
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Book{}, fmt.Errorf("insert book: %w", err)
	}
	return bookFromModel(model), nil
}

// UpdateBook replaces the editable fields of an owned book.
func (s *GormStore) UpdateBook(ctx context.Context, sellerID int64, book domain.Book) (domain.Book, bool, error) {
	res := s.db.WithContext(ctx).Model(&BookModel{}).
		Where("id = ? AND seller_id = ?", book.ID, sellerID).
		Updates(map[string]any{
			"title":     book.Title,
			"price":     book.Price,
			"stock":     book.Stock,
			"image_url": nullableString(book.ImageURL),
		})
	if res.Error != nil {
		return domain.Book{}, false, fmt.Errorf("update book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Book{}, false, nil
	}
	return s.GetBook(ctx, sellerID, book.ID)
}

// SetBookCover records the object key of an owned book's cover.
func (s *GormStore) SetBookCover(ctx context.Context, sellerID, bookID int64, coverKey string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&BookModel{}).
		Where("id = ? AND seller_id = ?", bookID, sellerID).
		Update("cover_key", nullableString(coverKey))
	if res.Error != nil {
		return false, fmt.Errorf("set book cover: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteBook removes an owned book. Its sales go with it through the FK cascade.
func (s *GormStore) DeleteBook(ctx context.Context, sellerID, bookID int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND seller_id = ?", bookID, sellerID).
		Delete(&BookModel{})
	if res.Error != nil {
		return false, fmt.Errorf("delete book: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

type bookTotalsRow struct {
	Count    int64
	PriceSum decimal.Decimal
}

// BookTotals counts the seller's books and sums their prices.
func (s *GormStore) BookTotals(ctx context.Context, sellerID int64) (domain.BookTotals, error) {
	var row bookTotalsRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS count, COALESCE(SUM(price), 0) AS price_sum
		 FROM books WHERE seller_id = ?`, sellerID,
	).Scan(&row).Error; err != nil {
		return domain.BookTotals{}, fmt.Errorf("book totals: %w", err)
	}
	return domain.BookTotals{Count: row.Count, PriceSum: row.PriceSum}, nil
}

type saleRow struct {
	ID         int64
	BookID     int64
	Quantity   int
	TotalPrice decimal.Decimal
	SaleDate   time.Time
	Title      string
	UnitPrice  decimal.Decimal
}

// ListSales returns the seller's sales joined with their books, newest first.
func (s *GormStore) ListSales(ctx context.Context, sellerID int64) ([]domain.SaleDetail, error) {
	var rows []saleRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT s.id, s.book_id, s.quantity, s.total_price, s.sale_date, b.title, b.price AS unit_price
		 FROM sales s
		 JOIN books b ON s.book_id = b.id
		 WHERE b.seller_id = ?
		 ORDER BY s.sale_date DESC, s.id DESC`, sellerID,
	).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	out := make([]domain.SaleDetail, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.SaleDetail{
			Sale: domain.Sale{
				ID:         r.ID,
				BookID:     r.BookID,
				Quantity:   r.Quantity,
				TotalPrice: r.TotalPrice,
				SaleDate:   r.SaleDate.UTC(),
			},
			Title:     r.Title,
			UnitPrice: r.UnitPrice,
		})
	}
	return out, nil
}

type salesTotalsRow struct {
	Orders    int64
	BooksSold int64
	Revenue   decimal.Decimal
}

// SalesTotals aggregates the seller's sales through their books.
func (s *GormStore) SalesTotals(ctx context.Context, sellerID int64) (domain.SalesTotals, error) {
	var row salesTotalsRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(s.id) AS orders,
		        COALESCE(SUM(s.quantity), 0) AS books_sold,
		        COALESCE(SUM(s.total_price), 0) AS revenue
		 FROM sales s
		 JOIN books b ON s.book_id = b.id
		 WHERE b.seller_id = ?`, sellerID,
	).Scan(&row).Error; err != nil {
		return domain.SalesTotals{}, fmt.Errorf("sales totals: %w", err)
	}
	return domain.SalesTotals{Orders: row.Orders, BooksSold: row.BooksSold, Revenue: row.Revenue}, nil
}

// SeedSalesIfEmpty locks the seller row, re-checks that no sales exist and
// inserts the generated sales in the same transaction.
func (s *GormStore) SeedSalesIfEmpty(ctx context.Context, sellerID int64, gen SaleGenerator) (int, error) {
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seller SellerModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", sellerID).
			First(&seller).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSellerNotFound
			}
			return fmt.Errorf("lock seller: %w", err)
		}

		var existing int64
		if err := tx.Raw(
			`SELECT COUNT(*) FROM sales s JOIN books b ON s.book_id = b.id WHERE b.seller_id = ?`,
			sellerID,
		).Scan(&existing).Error; err != nil {
			return fmt.Errorf("count sales: %w", err)
		}
		if existing > 0 {
			return nil
		}

		var books []BookModel
		if err := tx.Where("seller_id = ?", sellerID).
			Order("id").
			Limit(SeedCandidateLimit).
			Find(&books).Error; err != nil {
			return fmt.Errorf("load seed books: %w", err)
		}
		if len(books) == 0 {
			return nil
		}
		candidates := make([]domain.Book, 0, len(books))
		for _, b := range books {
			candidates = append(candidates, bookFromModel(b))
		}

		sales := gen(candidates)
		if len(sales) == 0 {
			return nil
		}
		models := make([]SaleModel, 0, len(sales))
		for _, sale := range sales {
			models = append(models, saleToModel(sale))
		}
		if err := tx.Create(&models).Error; err != nil {
			return fmt.Errorf("insert seed sales: %w", err)
		}
		inserted = len(models)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func nullableString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func sellerToModel(s domain.Seller) SellerModel {
	return SellerModel{
		ID:        s.ID,
		Name:      s.Name,
		Email:     s.Email,
		Password:  s.PasswordHash,
		CreatedAt: s.CreatedAt,
	}
}

func sellerFromModel(m SellerModel) domain.Seller {
	return domain.Seller{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.Password,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:        b.ID,
		SellerID:  b.SellerID,
		Title:     b.Title,
		Price:     b.Price,
		Stock:     b.Stock,
		ImageURL:  nullableString(b.ImageURL),
		CoverKey:  nullableString(b.CoverKey),
		CreatedAt: b.CreatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:        m.ID,
		SellerID:  m.SellerID,
		Title:     m.Title,
		Price:     m.Price,
		Stock:     m.Stock,
		ImageURL:  derefString(m.ImageURL),
		CoverKey:  derefString(m.CoverKey),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func saleToModel(s domain.Sale) SaleModel {
	return SaleModel{
		ID:         s.ID,
		BookID:     s.BookID,
		Quantity:   s.Quantity,
		TotalPrice: s.TotalPrice,
		SaleDate:   s.SaleDate,
	}
}
