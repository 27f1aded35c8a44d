package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"bookbazaar/internal/util"
	"bookbazaar/pkg/domain"
	"bookbazaar/pkg/queue"
	"bookbazaar/pkg/store"
)

// Sales lists the seller's sales newest first together with their summary.
// With seed-on-read enabled, a seller with books but no sales gets demo
// sales first.
func (a *App) Sales(ctx context.Context, sellerID int64) ([]domain.SaleDetail, domain.SalesSummary, error) {
	if a.seedOnRead {
		if _, err := a.SeedSales(ctx, sellerID); err != nil && !errors.Is(err, ErrSellerNotFound) {
			return nil, domain.SalesSummary{}, err
		}
	}
	var (
		sales  []domain.SaleDetail
		totals domain.SalesTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, err = a.store.ListSales(gctx, sellerID)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = a.store.SalesTotals(gctx, sellerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.SalesSummary{}, fmt.Errorf("load sales: %w", err)
	}
	return sales, domain.Summarize(totals), nil
}

// SeedSales inserts demo sales when the seller has books and no sales yet.
// It reports how many sales were inserted; repeated calls insert nothing.
func (a *App) SeedSales(ctx context.Context, sellerID int64) (int, error) {
	n, err := a.store.SeedSalesIfEmpty(ctx, sellerID, a.seeder.Generate)
	if err != nil {
		if errors.Is(err, store.ErrSellerNotFound) {
			return 0, ErrSellerNotFound
		}
		return 0, fmt.Errorf("seed sales: %w", err)
	}
	if n > 0 {
		util.LoggerFromContext(ctx).Info("seeded demo sales", "seller_id", sellerID, "count", n)
	}
	return n, nil
}

// SeedQueued reports whether explicit seed requests run in the background.
func (a *App) SeedQueued() bool {
	return a.queue != nil
}

// EnqueueSeed schedules a background seed for the seller.
func (a *App) EnqueueSeed(ctx context.Context, sellerID int64) (queue.SeedJob, error) {
	if a.queue == nil {
		return queue.SeedJob{}, ErrSeedQueueDisabled
	}
	job, err := a.queue.Enqueue(ctx, sellerID)
	if err != nil {
		return queue.SeedJob{}, fmt.Errorf("enqueue seed: %w", err)
	}
	return job, nil
}

// SeedJob returns a seed job owned by sellerID.
func (a *App) SeedJob(ctx context.Context, sellerID int64, jobID string) (queue.SeedJob, error) {
	if a.queue == nil {
		return queue.SeedJob{}, ErrSeedQueueDisabled
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return queue.SeedJob{}, ErrSeedJobNotFound
	}
	job, found, err := a.queue.GetJob(ctx, jobID)
	if err != nil {
		return queue.SeedJob{}, fmt.Errorf("load seed job: %w", err)
	}
	if !found || job.SellerID != sellerID {
		return queue.SeedJob{}, ErrSeedJobNotFound
	}
	return job, nil
}

// RunSeedJob is the queue worker handler.
func (a *App) RunSeedJob(ctx context.Context, job queue.SeedJob) (int, error) {
	return a.SeedSales(ctx, job.SellerID)
}

// Dashboard returns the seller's overview totals.
func (a *App) Dashboard(ctx context.Context, sellerID int64) (domain.DashboardStats, error) {
	var (
		books domain.BookTotals
		sales domain.SalesTotals
	)
	g, gctx := errgroup.WithContext(ctx)
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
		return domain.DashboardStats{}, fmt.Errorf("load dashboard: %w", err)
	}
	return domain.Dashboard(books, sales), nil
}
