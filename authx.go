// Package authx is a token-based authentication kit: signed access tokens,
// persisted refresh tokens with one-time rotation and reuse detection, and
// role-scope authorization, assembled with fx.
package authx

import (
	"github.com/tech-arch1tect/authx/app"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/internal/options"
)

type App = app.App

func New(opts ...options.Option) *App {
	return app.New(opts...)
}

func WithConfig(cfg *config.Config) options.Option {
	return options.WithConfig(cfg)
}

func WithModels(models ...any) options.Option {
	return options.WithModels(models...)
}

func WithServer() options.Option {
	return options.WithServer()
}

func WithFxOptions(fxOpts ...any) options.Option {
	return options.WithFxOptions(fxOpts...)
}
