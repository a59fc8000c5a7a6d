package rotation

import (
	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/services/auth"
	"github.com/tech-arch1tect/authx/services/logging"
	"github.com/tech-arch1tect/authx/services/refreshtoken"
	"github.com/tech-arch1tect/authx/services/scopes"
	"github.com/tech-arch1tect/authx/services/tokens"
	"go.uber.org/fx"
)

func ProvideEngine(verifier *auth.Service, codec *tokens.Service, authorizer *scopes.Authorizer, store *refreshtoken.Store, clk clock.Clock, logger *logging.Service) *Engine {
	return NewEngine(verifier, codec, authorizer, store, clk, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideEngine),
)
