package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"bookbazaar/internal/util"
	"bookbazaar/pkg/domain"
	"bookbazaar/pkg/storage"
)

// ListBooks returns the seller's books, newest first.
func (a *App) ListBooks(ctx context.Context, sellerID int64) ([]domain.Book, error) {
	books, err := a.store.ListBooks(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	for i := range books {
		books[i] = a.withCoverURL(ctx, books[i])
	}
	return books, nil
}

// CreateBook adds a book owned by sellerID.
func (a *App) CreateBook(ctx context.Context, sellerID int64, in domain.BookInput) (domain.Book, error) {
	book, err := validateBookInput(in)
	if err != nil {
		return domain.Book{}, err
	}
	book.SellerID = sellerID
	created, err := a.store.CreateBook(ctx, book)
	if err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	return created, nil
}

// UpdateBook replaces the editable fields of an owned book. A book that is
// missing or owned by someone else yields ErrBookNotEditable either way.
func (a *App) UpdateBook(ctx context.Context, sellerID, bookID int64, in domain.BookInput) (domain.Book, error) {
	book, err := validateBookInput(in)
	if err != nil {
		return domain.Book{}, err
	}
	book.ID = bookID
	updated, found, err := a.store.UpdateBook(ctx, sellerID, book)
	if err != nil {
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	if !found {
		return domain.Book{}, ErrBookNotEditable
	}
	return a.withCoverURL(ctx, updated), nil
}

// DeleteBook removes an owned book, its sales and its cover object.
func (a *App) DeleteBook(ctx context.Context, sellerID, bookID int64) error {
	book, found, err := a.store.GetBook(ctx, sellerID, bookID)
	if err != nil {
		return fmt.Errorf("load book: %w", err)
	}
	if !found {
		return ErrBookNotDeletable
	}
	deleted, err := a.store.DeleteBook(ctx, sellerID, bookID)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if !deleted {
		return ErrBookNotDeletable
	}
	a.removeCover(ctx, book.CoverKey)
	return nil
}

// UploadCover stores a cover image for an owned book and returns the book
// with a fresh presigned image URL. The previous cover is removed.
func (a *App) UploadCover(ctx context.Context, sellerID, bookID int64, filename string, r io.Reader, size int64) (domain.Book, error) {
	if a.objects == nil {
		return domain.Book{}, ErrCoverStorageDisabled
	}
	book, found, err := a.store.GetBook(ctx, sellerID, bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	if !found {
		return domain.Book{}, ErrBookNotEditable
	}
	key, contentType, err := storage.CoverKey(sellerID, filename)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedCoverType) {
			return domain.Book{}, ErrCoverTypeUnsupported
		}
		return domain.Book{}, err
	}
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Book{}, fmt.Errorf("save cover: %w", err)
	}
	updated, err := a.store.SetBookCover(ctx, sellerID, bookID, key)
	if err != nil || !updated {
		a.removeCover(ctx, key)
		if err != nil {
			return domain.Book{}, fmt.Errorf("record cover: %w", err)
		}
		return domain.Book{}, ErrBookNotEditable
	}
	a.removeCover(ctx, book.CoverKey)
	book.CoverKey = key
	return a.withCoverURL(ctx, book), nil
}

func (a *App) withCoverURL(ctx context.Context, book domain.Book) domain.Book {
	if a.objects == nil || book.CoverKey == "" {
		return book
	}
	url, err := a.objects.PresignGet(ctx, book.CoverKey, a.presignExpiry)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("presign cover failed", "book_id", book.ID, "err", err)
		return book
	}
	book.ImageURL = url
	return book
}

func (a *App) removeCover(ctx context.Context, key string) {
	if a.objects == nil || key == "" {
		return
	}
	if err := a.objects.Delete(ctx, key); err != nil {
		util.LoggerFromContext(ctx).Warn("delete cover failed", "key", key, "err", err)
	}
}

// validateBookInput requires a title, a positive price and a non-negative
// stock. A zero price counts as missing.
func validateBookInput(in domain.BookInput) (domain.Book, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.Price == nil || in.Stock == nil {
		return domain.Book{}, ErrBookFieldsRequired
	}
	if !in.Price.IsPositive() || *in.Stock < 0 {
		return domain.Book{}, ErrBookFieldsRequired
	}
	return domain.Book{
		Title:    title,
		Price:    in.Price.Round(domain.CurrencyPlaces),
		Stock:    *in.Stock,
		ImageURL: strings.TrimSpace(in.ImageURL),
	}, nil
}
