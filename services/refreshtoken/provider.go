package refreshtoken

import (
	"context"

	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB, cfg *config.Config, clk clock.Clock, logger *logging.Service) *Store {
	return NewStore(db, cfg, clk, logger)
}

func StartSweep(lc fx.Lifecycle, store *Store, cfg *config.Config) {
	if cfg.RefreshToken.SweepInterval <= 0 {
		return
	}

	stop := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			store.StartSweepWorker(stop)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return nil
		},
	})
}

var Options = fx.Options(
	fx.Provide(ProvideStore),
	fx.Invoke(StartSweep),
)
