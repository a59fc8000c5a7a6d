package tokens

import (
	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/services/logging"
	"go.uber.org/fx"
)

func NewTokenService(cfg *config.Config, clk clock.Clock, logger *logging.Service) *Service {
	return NewService(cfg, clk, logger)
}

var Options = fx.Options(
	fx.Provide(NewTokenService),
)
