package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/grocer-offers/internal/domain/offer"
	"github.com/xenking/grocer-offers/internal/domain/pricing"
	"github.com/xenking/grocer-offers/internal/domain/product"
	"github.com/xenking/grocer-offers/internal/domain/quote"
	"github.com/xenking/grocer-offers/internal/handler"
	"github.com/xenking/grocer-offers/internal/storage/postgres"
	"github.com/xenking/grocer-offers/internal/storage/rediscache"
	"github.com/xenking/grocer-offers/pkg/health"
	"github.com/xenking/grocer-offers/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", health.Ping(pool))
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCount(10000), health.WithTimeout(time.Second))

	// Repositories. The Redis cache is optional; the service degrades to
	// reading offers straight from PostgreSQL without it.
	productRepo := postgres.NewProductRepository(pool)
	var offerRepo offer.Repository = postgres.NewOfferRepository(pool)
	if cfg.RedisURL != "" {
		rdb, err := rediscache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()
		offerRepo = rediscache.NewOfferRepository(offerRepo, rdb, cfg.OfferCache.TTL)
		lg.Info("Offer cache enabled", zap.Duration("ttl", cfg.OfferCache.TTL))
	}

	h, err := newHandler(ctx, cfg, healthSvc, productRepo, offerRepo, m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           h,
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHandler wires the domain services behind the HTTP middleware chain. The
// rate limiter janitor runs until ctx is done.
func newHandler(
	ctx context.Context,
	cfg *Config,
	healthSvc *health.Health,
	products product.Repository,
	offers offer.Repository,
	mp metric.MeterProvider,
	tp trace.TracerProvider,
) (http.Handler, error) {
	selector := offer.NewRepoSelector(offers)
	quotes, err := quote.NewService(products, selector, pricing.New(),
		quote.WithMeterProvider(mp),
		quote.WithTracerProvider(tp),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create quote service")
	}

	limiter := httpmiddleware.NewLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	go limiter.Run(ctx)

	// Router: health endpoints + retailer API on one server.
	r := chi.NewRouter()
	r.Get("/livez", healthSvc.LiveHandler)
	r.Get("/readyz", healthSvc.ReadyHandler)
	handler.New(selector, quotes).Mount(r,
		httpmiddleware.RateLimit(limiter, httpmiddleware.URLParam("retailerID")),
	)

	instrumented := otelhttp.NewHandler(r, "offers-api",
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithTracerProvider(tp),
	)

	return httpmiddleware.Wrap(instrumented,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins:          cfg.CORS.Origins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
	), nil
}
