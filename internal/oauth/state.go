package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// stateClaims binds an authorization request to a dashboard user. The jti
// makes every issued state single-use once consumed.
type stateClaims struct {
	jwt.RegisteredClaims
	DashboardUserID string `json:"dashboard_user_id"`
}

// StateCodec issues and verifies the signed OAuth state token. The token is
// a capability, not a database row: forging one requires the signing secret,
// which closes the callback CSRF window.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewStateCodec creates a state token codec
func NewStateCodec(secret string, ttl time.Duration) *StateCodec {
	return &StateCodec{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue signs a short-lived state token for one dashboard user
func (c *StateCodec) Issue(dashboardUserID string) (string, error) {
	if len(c.secret) == 0 {
		return "", fmt.Errorf("state secret is empty")
	}

	now := time.Now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		DashboardUserID: dashboardUserID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify validates the token signature and expiry, returning the bound
// dashboard user and the token's jti
func (c *StateCodec) Verify(tokenString string) (dashboardUserID, jti string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &stateClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid state claims")
	}
	if claims.ID == "" {
		return "", "", fmt.Errorf("state token has no id")
	}
	return claims.DashboardUserID, claims.ID, nil
}

// StateStore enforces single use of verified state tokens
type StateStore interface {
	// Consume marks a state id as used. It returns false when the id was
	// already consumed.
	Consume(ctx context.Context, jti string) (bool, error)
}

// RedisStateStore implements StateStore on redis. SETNX with the state TTL is
// enough: the first consumer sets the key, every later consumer sees it.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore creates a redis-backed state store
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *RedisStateStore) Consume(ctx context.Context, jti string) (bool, error) {
	ok, err := s.client.SetNX(ctx, "oauth_state:"+jti, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return ok, nil
}
