package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"AUTHX_APP_"`
	Server       ServerConfig       `envPrefix:"AUTHX_SERVER_"`
	Log          LogConfig          `envPrefix:"AUTHX_LOG_"`
	Database     DatabaseConfig     `envPrefix:"AUTHX_DATABASE_"`
	JWT          JWTConfig          `envPrefix:"AUTHX_JWT_"`
	RefreshToken RefreshTokenConfig `envPrefix:"AUTHX_REFRESH_TOKEN_"`
	Auth         AuthConfig         `envPrefix:"AUTHX_AUTH_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"authx"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"localhost"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"authx.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	Issuer       string        `env:"ISSUER" envDefault:"authx"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"30m"`
}

type RefreshTokenConfig struct {
	Expiry        time.Duration `env:"EXPIRY" envDefault:"168h"`
	TokenLength   int           `env:"TOKEN_LENGTH" envDefault:"32"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
}

type AuthConfig struct {
	BcryptCost     int  `env:"BCRYPT_COST" envDefault:"12"`
	MinLength      int  `env:"MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool `env:"REQUIRE_UPPER" envDefault:"true"`
	RequireLower   bool `env:"REQUIRE_LOWER" envDefault:"true"`
	RequireNumber  bool `env:"REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool `env:"REQUIRE_SPECIAL" envDefault:"false"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
