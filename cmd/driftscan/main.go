// driftscan reports quotes whose linked package has been repriced since the
// quote was last calculated. It is strictly read-only: every flagged quote
// still needs an operator to review and apply the new price.
package main

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/directory"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/observability"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/app"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/shared"
	mysqlrepo "github.com/samlupson2171/infinityagentsoct-sub018/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Int("workers", cfg.ScanWorkers).
		Int("rps", cfg.ScanRPS).
		Int("limit", cfg.ScanLimit).
		Msg("driftscan starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	actors, err := directory.ParseStatic(cfg.DirectoryJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("DIRECTORY_JSON is invalid")
	}
	hist := app.NewHistoryService(repo, actors)
	quotes := app.NewQuoteService(repo, repo, hist, nil)

	page, err := quotes.ListQuotes(ctx, domain.QuotesQuery{Limit: cfg.ScanLimit})
	if err != nil {
		log.Fatal().Err(err).Msg("list quotes failed")
	}

	// limiter paces reads against the shared database; semaphore bounds
	// in-flight comparisons.
	limiter := rate.NewLimiter(rate.Limit(cfg.ScanRPS), cfg.ScanRPS)
	sem := semaphore.NewWeighted(int64(cfg.ScanWorkers))
	var wg sync.WaitGroup

	var scanned, drifted, onRequest, failed int64

	for _, q := range page.Items {
		if q.LinkedPackage == nil || q.Status == domain.QuoteArchived {
			continue
		}
		q := q

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(int64(1))

			if err := limiter.Wait(ctx); err != nil {
				return
			}
			atomic.AddInt64(&scanned, 1)

			cmp, err := quotes.ComputeRecalculation(ctx, q.ID)
			switch {
			case errors.Is(err, domain.ErrPriceOnRequest):
				atomic.AddInt64(&onRequest, 1)
				log.Warn().Str("quote", q.ID).Str("package", q.LinkedPackage.PackageID).
					Msg("combination is now on request; manual pricing required")
				return
			case err != nil:
				atomic.AddInt64(&failed, 1)
				log.Warn().Str("quote", q.ID).Err(err).Msg("comparison failed")
				return
			}

			if cmp.PriceDifference.IsZero() && !cmp.PackageVersionChanged {
				return
			}
			atomic.AddInt64(&drifted, 1)
			log.Info().
				Str("quote", q.ID).
				Str("package", q.LinkedPackage.PackageID).
				Str("old_price", cmp.OldPrice.String()).
				Str("new_price", cmp.NewPrice.String()).
				Str("difference", cmp.PriceDifference.String()).
				Float64("pct", cmp.PercentageChange).
				Int("old_package_version", cmp.OldPackageVersion).
				Int("new_package_version", cmp.NewPackageVersion).
				Msg("price drift detected")
		}()
	}

	wg.Wait()
	log.Info().
		Int64("scanned", scanned).
		Int64("drifted", drifted).
		Int64("on_request", onRequest).
		Int64("failed", failed).
		Msg("driftscan completed")
}
