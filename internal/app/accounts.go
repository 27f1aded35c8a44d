package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"bookbazaar/pkg/auth"
	"bookbazaar/pkg/domain"
	"bookbazaar/pkg/store"
)

// Register creates a seller account and returns it with a session token.
func (a *App) Register(ctx context.Context, name, email, password string) (domain.Seller, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return domain.Seller{}, "", ErrRegistrationFieldsRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.Seller{}, "", ErrPasswordTooShort
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Seller{}, "", fmt.Errorf("hash password: %w", err)
	}
	seller, err := a.store.CreateSeller(ctx, domain.Seller{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.Seller{}, "", ErrEmailRegistered
		}
		return domain.Seller{}, "", fmt.Errorf("create seller: %w", err)
	}
	token, err := a.sessions.Issue(seller.ID, seller.Email)
	if err != nil {
		return domain.Seller{}, "", fmt.Errorf("issue session: %w", err)
	}
	return seller, token, nil
}

// Login checks credentials and issues a session token.
func (a *App) Login(ctx context.Context, email, password string) (domain.Seller, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Seller{}, "", ErrLoginFieldsRequired
	}
	seller, found, err := a.store.GetSellerByEmail(ctx, email)
	if err != nil {
		return domain.Seller{}, "", fmt.Errorf("load seller: %w", err)
	}
	if !found || !auth.CheckPassword(password, seller.PasswordHash) {
		return domain.Seller{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.Issue(seller.ID, seller.Email)
	if err != nil {
		return domain.Seller{}, "", fmt.Errorf("issue session: %w", err)
	}
	return seller, token, nil
}

// Me returns the authenticated seller.
func (a *App) Me(ctx context.Context, sellerID int64) (domain.Seller, error) {
	seller, found, err := a.store.GetSellerByID(ctx, sellerID)
	if err != nil {
		return domain.Seller{}, fmt.Errorf("load seller: %w", err)
	}
	if !found {
		return domain.Seller{}, ErrSellerNotFound
	}
	return seller, nil
}

// Profile returns the seller with book count, sale count and revenue.
func (a *App) Profile(ctx context.Context, sellerID int64) (domain.ProfileStats, error) {
	var (
		seller domain.Seller
		found  bool
		books  domain.BookTotals
		sales  domain.SalesTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		seller, found, err = a.store.GetSellerByID(gctx, sellerID)
		return err
	})
	g.Go(func() error {
		var err error
		books, err = a.store.BookTotals(gctx, sellerID)
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = a.store.SalesTotals(gctx, sellerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ProfileStats{}, fmt.Errorf("load profile: %w", err)
	}
	if !found {
		return domain.ProfileStats{}, ErrSellerNotFound
	}
	return domain.ProfileStats{
		Seller:       seller,
		BookCount:    books.Count,
		SaleCount:    sales.Orders,
		TotalRevenue: sales.Revenue.Round(domain.CurrencyPlaces),
	}, nil
}

// UpdateProfile changes the seller's name and email. Keeping the current
// email is not a conflict.
func (a *App) UpdateProfile(ctx context.Context, sellerID int64, name, email string) (domain.Seller, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return domain.Seller{}, ErrProfileFieldsRequired
	}
	taken, err := a.store.EmailTakenByOther(ctx, email, sellerID)
	if err != nil {
		return domain.Seller{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.Seller{}, ErrEmailTaken
	}
	seller, found, err := a.store.UpdateSellerProfile(ctx, sellerID, name, email)
	if err != nil {
		// Another seller claimed the email between the check and the update.
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.Seller{}, ErrEmailTaken
		}
		return domain.Seller{}, fmt.Errorf("update profile: %w", err)
	}
	if !found {
		return domain.Seller{}, ErrSellerNotFound
	}
	return seller, nil
}
