package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
)

// Service verifies credentials and manages password hashes. Unknown username,
// wrong password and inactive account all collapse into ErrInvalidCredentials
// so the response shape leaks nothing about which check failed.
type Service struct {
	config *config.Config
	db     *gorm.DB
	clk    clock.Clock
	logger *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, clk clock.Clock, logger *logging.Service) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		config: cfg,
		db:     db,
		clk:    clk,
		logger: logger,
	}
}

// VerifyCredentials authenticates username/password and returns the matching
// active user. LastLoginAt is updated on success; the update failing does not
// fail the login.
func (s *Service) VerifyCredentials(username, password string) (*User, error) {
	var user User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.logger != nil {
				s.logger.Warn("login failed - unknown username", zap.String("username", username))
			}
			// burn a bcrypt comparison so unknown users cost the same as wrong passwords
			_ = bcrypt.CompareHashAndPassword([]byte("$2a$12$eKkfM1lyMKLkLPsmVYAIPeodG0JkMX1gRXkRZ1r6v9mhUpZZebm2e"), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if s.logger != nil {
			s.logger.Warn("login failed - password mismatch", zap.Uint("user_id", user.ID))
		}
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		if s.logger != nil {
			s.logger.Warn("login failed - inactive user", zap.Uint("user_id", user.ID))
		}
		return nil, ErrInvalidCredentials
	}

	now := s.clk.Now()
	if err := s.db.Model(&user).Update("last_login_at", now).Error; err != nil && s.logger != nil {
		s.logger.Warn("failed to update last login time",
			zap.Uint("user_id", user.ID),
			zap.Error(err))
	}
	user.LastLoginAt = &now

	if s.logger != nil {
		s.logger.Info("user authenticated",
			zap.Uint("user_id", user.ID),
			zap.String("role", user.Role))
	}

	return &user, nil
}

func (s *Service) GetUser(id uint) (*User, error) {
	var user User
	err := s.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.Auth.MinLength {
		return fmt.Errorf("password must be at least %d characters", s.config.Auth.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	var missing []string

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if s.config.Auth.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.Auth.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.config.Auth.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.Auth.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least %s", strings.Join(missing, ", "))
	}

	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return "", ErrPasswordHashingFailed
	}

	return string(hash), nil
}

func (s *Service) MustHashPassword(password string) string {
	hash, err := s.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return hash
}
