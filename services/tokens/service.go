package tokens

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid access token")
	ErrExpiredToken     = errors.New("access token has expired")
	ErrMalformedToken   = errors.New("malformed access token")
	ErrInvalidSignature = errors.New("invalid access token signature")
)

const KindAccess = "access"

// Claims is the signed payload of an access token. Scopes are resolved from
// the subject's role at issuance and never re-derived afterwards.
type Claims struct {
	SubjectID uint     `json:"sub_id"`
	Scopes    []string `json:"scopes"`
	Kind      string   `json:"kind"`
	JTI       string   `json:"jti"`
	jwt.RegisteredClaims
}

// Service encodes and verifies access tokens. It is stateless: every method is
// a pure function of its input, the signing secret and the clock.
type Service struct {
	config *config.Config
	clk    clock.Clock
	logger *logging.Service
}

func NewService(cfg *config.Config, clk clock.Clock, logger *logging.Service) *Service {
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		config: cfg,
		clk:    clk,
		logger: logger,
	}
}

func (s *Service) AccessExpirySeconds() int {
	return int(s.config.JWT.AccessExpiry.Seconds())
}

func (s *Service) Generate(subjectID uint, scopes []string) (string, error) {
	now := s.clk.Now()
	jti := uuid.New().String()
	claims := Claims{
		SubjectID: subjectID,
		Scopes:    scopes,
		Kind:      KindAccess,
		JTI:       jti,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.JWT.Issuer,
			Subject:   strconv.FormatUint(uint64(subjectID), 10),
			Audience:  []string{s.config.JWT.Issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.AccessExpiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWT.SecretKey))
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to sign access token", zap.Error(err))
		}
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, nil
}

// Parse verifies signature and expiry and maps failures onto the package
// sentinels. An expired-but-genuine token is distinguishable from a tampered
// one so callers can branch (re-auth prompt vs security event).
func (s *Service) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}

		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
		}

		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
		}

		return []byte(s.config.JWT.SecretKey), nil
	}, jwt.WithTimeFunc(s.clk.Now))

	if err != nil {
		if s.logger != nil {
			s.logger.Warn("access token validation failed", zap.Error(err))
		}

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Kind != KindAccess {
		if s.logger != nil {
			s.logger.Warn("token presented with wrong kind", zap.String("kind", claims.Kind))
		}
		return nil, ErrInvalidToken
	}

	return claims, nil
}
