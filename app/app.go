package app

import (
	"context"

	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/database"
	"github.com/tech-arch1tect/authx/internal/options"
	"github.com/tech-arch1tect/authx/server"
	"github.com/tech-arch1tect/authx/services/auth"
	"github.com/tech-arch1tect/authx/services/logging"
	"github.com/tech-arch1tect/authx/services/refreshtoken"
	"github.com/tech-arch1tect/authx/services/rotation"
	"github.com/tech-arch1tect/authx/services/scopes"
	"github.com/tech-arch1tect/authx/services/tokens"
	"go.uber.org/fx"
)

// App bundles the token subsystem into one fx application: config, logging,
// database, codec, store, engine, authorizer and (optionally) the HTTP server.
type App struct {
	fx *fx.App
}

func New(opts ...options.Option) *App {
	resolved := &options.Options{}
	for _, opt := range opts {
		opt(resolved)
	}

	models := append([]any{&auth.User{}, &refreshtoken.RefreshToken{}}, resolved.DatabaseModels...)

	fxOptions := []fx.Option{
		config.NewProvider(resolved.Config),
		logging.Module,
		fx.Provide(clock.System),
		fx.Supply(database.WithModels(models...)),
		database.Module,
		tokens.Options,
		refreshtoken.Options,
		scopes.Options,
		auth.Options,
		rotation.Options,
	}

	if resolved.EnableServer {
		fxOptions = append(fxOptions, server.NewProvider())
	}

	for _, extra := range resolved.ExtraFxOptions {
		if fxOpt, ok := extra.(fx.Option); ok {
			fxOptions = append(fxOptions, fxOpt)
		}
	}

	return &App{fx: fx.New(fxOptions...)}
}

func (a *App) Run() {
	a.fx.Run()
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.fx.Stop(ctx)
}
