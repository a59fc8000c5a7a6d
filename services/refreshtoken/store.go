package refreshtoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTokenNotFound         = errors.New("refresh token not found")
	ErrAlreadyRotated        = errors.New("refresh token already rotated or revoked")
	ErrTokenGenerationFailed = errors.New("failed to generate secure token")
)

// Store owns the refresh_tokens table. All state transitions on a record go
// through conditional updates so concurrent redemptions of the same token
// resolve to exactly one winner.
type Store struct {
	db     *gorm.DB
	config *config.Config
	clk    clock.Clock
	logger *logging.Service
}

func NewStore(db *gorm.DB, cfg *config.Config, clk clock.Clock, logger *logging.Service) *Store {
	if clk == nil {
		clk = clock.System()
	}
	if logger != nil {
		logger.Info("initializing refresh token store",
			zap.Duration("token_expiry", cfg.RefreshToken.Expiry),
			zap.Int("token_length", cfg.RefreshToken.TokenLength),
			zap.Duration("sweep_interval", cfg.RefreshToken.SweepInterval))
	}

	return &Store{
		db:     db,
		config: cfg,
		clk:    clk,
		logger: logger,
	}
}

// Create mints a new ACTIVE record for subjectID and returns it together with
// the raw token string. The raw string carries at least 128 bits of entropy
// and is never written to storage.
func (s *Store) Create(subjectID uint, issuingIP string) (*CreatedToken, error) {
	raw, err := s.generateSecureToken()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate refresh token", zap.Error(err))
		}
		return nil, ErrTokenGenerationFailed
	}

	now := s.clk.Now()
	record := RefreshToken{
		SubjectID: subjectID,
		TokenHash: HashToken(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.RefreshToken.Expiry),
		IssuingIP: issuingIP,
	}

	if err := s.db.Create(&record).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to store refresh token", zap.Error(err))
		}
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("refresh token created",
			zap.Uint("subject_id", subjectID),
			zap.Uint("token_id", record.ID),
			zap.Time("expires_at", record.ExpiresAt))
	}

	return &CreatedToken{Raw: raw, Record: record}, nil
}

func (s *Store) FindByToken(raw string) (*RefreshToken, error) {
	return s.findWhere("token_hash = ?", HashToken(raw))
}

func (s *Store) FindByID(id uint) (*RefreshToken, error) {
	return s.findWhere("id = ?", id)
}

func (s *Store) findWhere(query string, arg any) (*RefreshToken, error) {
	var record RefreshToken
	err := s.db.Where(query, arg).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	record.normalize()
	return &record, nil
}

// MarkRotated transitions a record from ACTIVE to ROTATED, pointing it at its
// successor. The update only matches a record that is still unrevoked and has
// no successor, so of any number of concurrent attempts exactly one succeeds;
// the rest get ErrAlreadyRotated.
func (s *Store) MarkRotated(id, successorID uint) error {
	now := s.clk.Now()
	result := s.db.Model(&RefreshToken{}).
		Where("id = ? AND revoked = ? AND replaced_by_id IS NULL", id, false).
		Updates(map[string]any{
			"replaced_by_id": successorID,
			"revoked":        true,
			"revoked_at":     now,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		if s.logger != nil {
			s.logger.Warn("lost rotation race or token no longer active",
				zap.Uint("token_id", id))
		}
		return ErrAlreadyRotated
	}

	if s.logger != nil {
		s.logger.Info("refresh token rotated",
			zap.Uint("token_id", id),
			zap.Uint("successor_id", successorID))
	}

	return nil
}

// Revoke marks a record revoked. Revoking an already-revoked record is a
// no-op success.
func (s *Store) Revoke(id uint) error {
	now := s.clk.Now()
	result := s.db.Model(&RefreshToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]any{
			"revoked":    true,
			"revoked_at": now,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", result.Error)
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Info("refresh token revoked", zap.Uint("token_id", id))
	}

	return nil
}

// RevokeChain revokes the record and every descendant reachable through
// replaced_by_id. The lineage can be arbitrarily long, so it is walked link by
// link through storage rather than loaded as a graph. Returns the number of
// records newly revoked.
func (s *Store) RevokeChain(id uint) (int, error) {
	revoked := 0
	currentID := id

	for {
		record, err := s.FindByID(currentID)
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) {
				break
			}
			return revoked, err
		}

		if !record.Revoked {
			if err := s.Revoke(record.ID); err != nil {
				return revoked, err
			}
			revoked++
		}

		if record.ReplacedByID == nil {
			break
		}
		currentID = *record.ReplacedByID
	}

	if s.logger != nil {
		s.logger.Warn("refresh token chain revoked",
			zap.Uint("root_token_id", id),
			zap.Int("newly_revoked", revoked))
	}

	return revoked, nil
}

func (s *Store) RevokeAllForSubject(subjectID uint) (int64, error) {
	now := s.clk.Now()
	result := s.db.Model(&RefreshToken{}).
		Where("subject_id = ? AND revoked = ?", subjectID, false).
		Updates(map[string]any{
			"revoked":    true,
			"revoked_at": now,
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke subject refresh tokens: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("all subject refresh tokens revoked",
			zap.Uint("subject_id", subjectID),
			zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// SweepExpired marks every expired-but-still-active record revoked so the
// usable predicate stays a cheap column check. Idempotent; safe to run
// alongside live rotation traffic since rotation requires an unexpired record.
func (s *Store) SweepExpired() (int64, error) {
	now := s.clk.Now()
	result := s.db.Model(&RefreshToken{}).
		Where("expires_at < ? AND revoked = ?", now, false).
		Updates(map[string]any{
			"revoked":    true,
			"revoked_at": now,
		})

	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("expired refresh token sweep failed", zap.Error(result.Error))
		}
		return 0, fmt.Errorf("failed to sweep expired tokens: %w", result.Error)
	}

	if s.logger != nil {
		if result.RowsAffected > 0 {
			s.logger.Info("swept expired refresh tokens", zap.Int64("count", result.RowsAffected))
		} else {
			s.logger.Debug("no expired refresh tokens to sweep")
		}
	}

	return result.RowsAffected, nil
}

// PurgeRevokedBefore deletes revoked records whose expiry is older than the
// cutoff. Archival policy belongs to the maintenance collaborator; the sweep
// itself never deletes because reuse detection needs the chain intact.
func (s *Store) PurgeRevokedBefore(cutoff time.Time) (int64, error) {
	result := s.db.
		Where("revoked = ? AND expires_at < ?", true, clock.EnsureUTC(cutoff)).
		Delete(&RefreshToken{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", result.Error)
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Info("purged revoked refresh tokens", zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

func (s *Store) generateSecureToken() (string, error) {
	length := s.config.RefreshToken.TokenLength
	if length < 16 {
		length = 16
	}
	tokenBytes := make([]byte, length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

// HashToken derives the storage key for a raw token string.
func HashToken(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])
}

// StartSweepWorker runs SweepExpired on a ticker until stop is closed.
func (s *Store) StartSweepWorker(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(s.config.RefreshToken.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.SweepExpired(); err != nil && s.logger != nil {
					s.logger.Error("refresh token sweep worker failed", zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info("started refresh token sweep worker",
			zap.Duration("interval", s.config.RefreshToken.SweepInterval))
	}
}
