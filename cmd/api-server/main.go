// Command api-server serves offer listings and cart quotes for retailers.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/grocer-offers/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}
		lg.Info("Configuration loaded",
			zap.Bool("offer_cache", cfg.RedisURL != ""),
			zap.Int("rate_limit", cfg.RateLimit.Max),
			zap.Duration("rate_window", cfg.RateLimit.Window),
		)
		return appkg.Run(ctx, lg, m, cfg)
	})
}
