package scopes

import (
	"github.com/tech-arch1tect/authx/services/logging"
	"go.uber.org/fx"
)

func ProvideAuthorizer(logger *logging.Service) *Authorizer {
	return NewAuthorizer(nil, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideAuthorizer),
)
