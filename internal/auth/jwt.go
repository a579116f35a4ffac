// Package auth issues and validates the admin tokens that guard the
// administrative API.
//
// Admin tokens are HS256 JWTs signed with ADMIN_JWT_SECRET. They carry the
// admin role, a subject naming the operator and a mandatory expiry. They
// are minted offline with `breezyctl token` and never refreshed.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const RoleAdmin = "admin"

const (
	DefaultIssuer   = "breezyd"
	DefaultAudience = "breezyd-admin"

	DefaultTokenTTL = 24 * time.Hour
	MaxTokenTTL     = 90 * 24 * time.Hour

	// clockSkew is tolerated on exp and nbf between the minting host and
	// the API.
	clockSkew = 30 * time.Second
)

var (
	ErrInvalidToken    = errors.New("invalid admin token")
	ErrTokenExpired    = errors.New("admin token has expired")
	ErrNotAdmin        = errors.New("token does not grant admin access")
	ErrMissingSecret   = errors.New("admin signing key not configured")
	ErrInvalidTokenTTL = errors.New("invalid token lifetime")
)

// Claims are the claims of an admin token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type JWTConfig struct {
	// SigningKey is the shared HS256 secret.
	SigningKey string
	Issuer     string // default DefaultIssuer
	Audience   string // default DefaultAudience
	Clock      func() time.Time
}

// JWTService mints and validates admin tokens.
type JWTService struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
	parser   *jwt.Parser
}

func NewJWTService(cfg JWTConfig) *JWTService {
	s := &JWTService{
		key:      []byte(cfg.SigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      cfg.Clock,
	}
	if s.issuer == "" {
		s.issuer = DefaultIssuer
	}
	if s.audience == "" {
		s.audience = DefaultAudience
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(s.now),
	)
	return s
}

// GenerateAdminToken mints a token for subject that expires after ttl.
func (s *JWTService) GenerateAdminToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if len(s.key) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	if ttl <= 0 || ttl > MaxTokenTTL {
		return "", time.Time{}, fmt.Errorf("%w: %s (max %s)", ErrInvalidTokenTTL, ttl, MaxTokenTTL)
	}

	issued := s.now()
	expires := issued.Add(ttl)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: RoleAdmin,
	}).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing admin token: %w", err)
	}
	return signed, expires, nil
}

// ValidateAdminToken checks signature, issuer, audience and expiry, and
// that the token carries the admin role.
func (s *JWTService) ValidateAdminToken(raw string) (*Claims, error) {
	if len(s.key) == 0 {
		return nil, ErrMissingSecret
	}

	var claims Claims
	_, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case claims.Role != RoleAdmin:
		return nil, ErrNotAdmin
	}
	return &claims, nil
}
