package rotation

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/services/auth"
	"github.com/tech-arch1tect/authx/services/logging"
	"github.com/tech-arch1tect/authx/services/refreshtoken"
	"github.com/tech-arch1tect/authx/services/tokens"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = auth.ErrInvalidCredentials
	ErrUnknownToken       = errors.New("unknown refresh token")
	ErrTokenExpired       = errors.New("refresh token expired")
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
)

// TokenPair is what a successful login or rotation hands back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type CredentialVerifier interface {
	VerifyCredentials(username, password string) (*auth.User, error)
	GetUser(id uint) (*auth.User, error)
}

type AccessTokenIssuer interface {
	Generate(subjectID uint, scopes []string) (string, error)
	Parse(tokenString string) (*tokens.Claims, error)
	AccessExpirySeconds() int
}

type ScopeResolver interface {
	ScopesForRole(role string) []string
	Authorize(granted []string, required ...string) error
}

// Engine drives the refresh-token state machine: issuance, one-time rotation,
// reuse detection with chain revocation, and revocation. Each record moves
// ACTIVE -> ROTATED | REVOKED | EXPIRED exactly once; all terminal states stay
// terminal.
type Engine struct {
	verifier CredentialVerifier
	codec    AccessTokenIssuer
	scopes   ScopeResolver
	store    *refreshtoken.Store
	clk      clock.Clock
	logger   *logging.Service
}

func NewEngine(verifier CredentialVerifier, codec AccessTokenIssuer, scopes ScopeResolver, store *refreshtoken.Store, clk clock.Clock, logger *logging.Service) *Engine {
	if clk == nil {
		clk = clock.System()
	}
	return &Engine{
		verifier: verifier,
		codec:    codec,
		scopes:   scopes,
		store:    store,
		clk:      clk,
		logger:   logger,
	}
}

// IssuePair authenticates the credentials and mints a fresh access/refresh
// pair. The subject's role is expanded to scopes here, once; the scopes ride
// inside the access token from then on.
func (e *Engine) IssuePair(username, password, issuingIP string) (*TokenPair, error) {
	user, err := e.verifier.VerifyCredentials(username, password)
	if err != nil {
		return nil, err
	}

	return e.mintPair(user, issuingIP)
}

// Refresh redeems a presented refresh token for a new pair. A token that was
// already rotated or revoked is treated as replayed: the whole lineage rooted
// at it is revoked before the failure surfaces. A token that simply aged out
// without ever being rotated fails with ErrTokenExpired.
func (e *Engine) Refresh(presented, issuingIP string) (*TokenPair, error) {
	record, err := e.store.FindByToken(presented)
	if err != nil {
		if errors.Is(err, refreshtoken.ErrTokenNotFound) {
			if e.logger != nil {
				e.logger.Warn("refresh attempted with unknown token", zap.String("issuing_ip", issuingIP))
			}
			return nil, ErrUnknownToken
		}
		return nil, err
	}

	now := e.clk.Now()
	expired := !now.Before(record.ExpiresAt)

	if record.ReplacedByID != nil {
		if _, err := e.store.RevokeChain(record.ID); err != nil && e.logger != nil {
			e.logger.Error("failed to revoke chain after reuse", zap.Error(err), zap.Uint("token_id", record.ID))
		}
		if e.logger != nil {
			e.logger.Warn("rotated refresh token replayed - chain revoked",
				zap.Uint("token_id", record.ID),
				zap.Uint("subject_id", record.SubjectID),
				zap.String("issuing_ip", issuingIP))
		}
		return nil, ErrTokenReuseDetected
	}

	if expired {
		// benign expiry: no successor was ever issued, nothing to defend
		if err := e.store.Revoke(record.ID); err != nil && e.logger != nil {
			e.logger.Error("failed to flag expired token", zap.Error(err), zap.Uint("token_id", record.ID))
		}
		return nil, ErrTokenExpired
	}

	if record.Revoked {
		if e.logger != nil {
			e.logger.Warn("revoked refresh token replayed",
				zap.Uint("token_id", record.ID),
				zap.Uint("subject_id", record.SubjectID),
				zap.String("issuing_ip", issuingIP))
		}
		return nil, ErrTokenReuseDetected
	}

	user, err := e.verifier.GetUser(record.SubjectID)
	if err != nil || !user.Active {
		// subject deleted or deactivated since issuance: kill the lineage
		if _, chainErr := e.store.RevokeChain(record.ID); chainErr != nil && e.logger != nil {
			e.logger.Error("failed to revoke chain for missing subject", zap.Error(chainErr))
		}
		return nil, ErrUnknownToken
	}

	successor, err := e.store.Create(record.SubjectID, issuingIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create successor token: %w", err)
	}

	if err := e.store.MarkRotated(record.ID, successor.Record.ID); err != nil {
		// lost the race against a concurrent redemption of the same token;
		// the orphaned successor was never released, retire it
		if revokeErr := e.store.Revoke(successor.Record.ID); revokeErr != nil && e.logger != nil {
			e.logger.Error("failed to retire orphan successor", zap.Error(revokeErr))
		}
		if errors.Is(err, refreshtoken.ErrAlreadyRotated) {
			if _, chainErr := e.store.RevokeChain(record.ID); chainErr != nil && e.logger != nil {
				e.logger.Error("failed to revoke chain after rotation race", zap.Error(chainErr))
			}
			if e.logger != nil {
				e.logger.Warn("concurrent redemption of refresh token rejected",
					zap.Uint("token_id", record.ID),
					zap.Uint("subject_id", record.SubjectID))
			}
			return nil, ErrTokenReuseDetected
		}
		return nil, err
	}

	granted := e.scopes.ScopesForRole(user.Role)
	accessToken, err := e.codec.Generate(user.ID, granted)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	if e.logger != nil {
		e.logger.Info("refresh token rotated",
			zap.Uint("subject_id", record.SubjectID),
			zap.Uint("old_token_id", record.ID),
			zap.Uint("new_token_id", successor.Record.ID))
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: successor.Raw,
		TokenType:    "bearer",
		ExpiresIn:    e.codec.AccessExpirySeconds(),
	}, nil
}

// Revoke marks the presented token revoked. Revoking a token that is already
// revoked or rotated is a no-op success.
func (e *Engine) Revoke(presented string) error {
	record, err := e.store.FindByToken(presented)
	if err != nil {
		if errors.Is(err, refreshtoken.ErrTokenNotFound) {
			return ErrUnknownToken
		}
		return err
	}

	return e.store.Revoke(record.ID)
}

// RevokeAll revokes every live refresh token belonging to the subject
// (logout everywhere).
func (e *Engine) RevokeAll(subjectID uint) (int64, error) {
	return e.store.RevokeAllForSubject(subjectID)
}

// Authorize verifies an access token and checks it carries every required
// scope. The check is purely local: scopes were baked in at issuance.
func (e *Engine) Authorize(accessToken string, required ...string) (*tokens.Claims, error) {
	claims, err := e.codec.Parse(accessToken)
	if err != nil {
		return nil, err
	}

	if err := e.scopes.Authorize(claims.Scopes, required...); err != nil {
		return nil, err
	}

	return claims, nil
}

func (e *Engine) mintPair(user *auth.User, issuingIP string) (*TokenPair, error) {
	granted := e.scopes.ScopesForRole(user.Role)

	accessToken, err := e.codec.Generate(user.ID, granted)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	created, err := e.store.Create(user.ID, issuingIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	if e.logger != nil {
		e.logger.Info("token pair issued",
			zap.Uint("subject_id", user.ID),
			zap.Uint("refresh_token_id", created.Record.ID))
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: created.Raw,
		TokenType:    "bearer",
		ExpiresIn:    e.codec.AccessExpirySeconds(),
	}, nil
}
