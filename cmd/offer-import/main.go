// Command offer-import loads offer exports into PostgreSQL.
//
// Every file matching --pattern in --data-dir is a gzip-compressed NDJSON
// stream with one offer per line. When an offer id shows up in more than one
// file the revision with the latest updatedAt is kept.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/grocer-offers/internal/storage/postgres"
	"github.com/xenking/grocer-offers/internal/storage/rediscache"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		redisURL    string
		expected    uint
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing the offer exports")
	flag.StringVar(&pattern, "pattern", "offers*.ndjson.gz", "glob of export files inside --data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisURL, "redis-url", "", "Redis URL of the offer cache to invalidate (or REDIS_URL env)")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of offers per file, sizes the bloom filters")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if redisURL == "" {
		redisURL = os.Getenv("REDIS_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, redisURL, expected); err != nil {
		slog.Error("offer import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("offer import completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL, redisURL string, expected uint) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "match export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", pattern, dataDir)
	}
	slices.Sort(files)

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := newImporter(postgres.NewOfferRepository(pool), expected).run(ctx, files)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Int("lines", stats.Read),
		slog.Int("written", stats.Written),
		slog.Int("shared", stats.Shared),
		slog.Int("skipped", stats.Skipped),
		slog.Int("retailers", len(stats.Retailers)),
	)

	if redisURL == "" {
		return nil
	}
	return invalidateCache(ctx, redisURL, stats.Retailers)
}

// invalidateCache drops the cached offer lists of the touched retailers so
// the API serves the imported revisions immediately.
func invalidateCache(ctx context.Context, redisURL string, retailers []string) error {
	rdb, err := rediscache.NewClient(ctx, redisURL)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = rdb.Close() }()

	if err := rediscache.NewOfferRepository(nil, rdb, 0).Invalidate(ctx, retailers...); err != nil {
		return errors.Wrap(err, "invalidate offer cache")
	}
	slog.Info("offer cache invalidated", slog.Int("retailers", len(retailers)))
	return nil
}
