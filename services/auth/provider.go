package auth

import (
	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAuthService(cfg *config.Config, db *gorm.DB, clk clock.Clock, logger *logging.Service) *Service {
	return NewService(cfg, db, clk, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideAuthService),
)
