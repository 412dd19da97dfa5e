// Command seed-db loads demo products and offers from a YAML fixture file.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/grocer-offers/internal/storage/postgres"
	"github.com/xenking/grocer-offers/internal/storage/rediscache"
)

func main() {
	var (
		databaseURL  string
		redisURL     string
		fixturesFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisURL, "redis-url", "", "Redis URL of the offer cache to invalidate (or REDIS_URL env)")
	flag.StringVar(&fixturesFile, "fixtures-file", "db/seed/fixtures.yaml", "path to the YAML fixtures")
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

	if err := run(ctx, databaseURL, redisURL, fixturesFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, redisURL, fixturesFile string) error {
	slog.Info("reading fixtures", slog.String("path", fixturesFile))

	data, err := os.ReadFile(fixturesFile)
	if err != nil {
		return errors.Wrap(err, "read fixtures file")
	}
	fx, err := parseFixtures(data)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := postgres.NewProductRepository(pool)
	slog.Info("upserting products", slog.Int("count", len(fx.Products)))
	for _, p := range fx.Products {
		if err := products.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	offers := postgres.NewOfferRepository(pool)
	slog.Info("upserting offers", slog.Int("count", len(fx.Offers)))
	for i := range fx.Offers {
		o := &fx.Offers[i]
		if err := offers.Upsert(ctx, o); err != nil {
			return errors.Wrapf(err, "upsert offer %s", o.ID)
		}
		slog.Info("upserted offer", slog.String("id", o.ID), slog.String("type", o.Type.Label()))
	}

	if redisURL == "" {
		return nil
	}

	rdb, err := rediscache.NewClient(ctx, redisURL)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = rdb.Close() }()

	if err := rediscache.NewOfferRepository(nil, rdb, 0).Invalidate(ctx, fx.retailers()...); err != nil {
		return errors.Wrap(err, "invalidate offer cache")
	}
	return nil
}
