package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrRevocationUnavailable = errors.New("token revocation requires redis")

// TokenService issues and revokes the bearer tokens that gateways and
// operators use against the API.
type TokenService struct {
	secret []byte
	redis  *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret []byte, redis *redis.Client, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		secret: secret,
		redis:  redis,
		ttl:    ttl,
		now:    time.Now,
	}
}

// SigningKey returns the HMAC key tokens are signed with.
func (s *TokenService) SigningKey() []byte {
	return s.secret
}

// Issue signs a token for subject. A zero ttl uses the service default.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	if len(s.secret) == 0 {
		return "", errors.New("signing key not configured")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(s.secret)
}

// Revoke blacklists a token until it would have expired anyway.
func (s *TokenService) Revoke(ctx context.Context, tokenString string) error {
	if s.redis == nil {
		return ErrRevocationUnavailable
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error parsing token: %w", err)
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return errors.New("token has no id or expiry")
	}

	ttl := claims.ExpiresAt.Sub(s.now())
	if err := s.redis.Set(ctx, revokedKey(claims.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("error revoking token: %w", err)
	}

	log.Printf("[AUTH] Revoked token %s for %s", claims.ID, claims.Subject)
	return nil
}

// IsRevoked reports whether the token id was revoked. Lookups fail open when
// Redis is absent or unreachable.
func (s *TokenService) IsRevoked(ctx context.Context, tokenID string) bool {
	if s.redis == nil || tokenID == "" {
		return false
	}
	n, err := s.redis.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		log.Printf("[AUTH] Revocation check failed, allowing token: %v", err)
		return false
	}
	return n > 0
}

func revokedKey(tokenID string) string {
	return "stash:revoked:" + tokenID
}
