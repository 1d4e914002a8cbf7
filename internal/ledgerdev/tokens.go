package ledgerdev

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/cache"
	"fintrack/internal/storage"
)

const verifiedCacheSize = 1024

var ErrInvalidToken = errors.New("invalid token")

// Tokens issues and verifies HS256 credentials carrying sub, username and
// exp claims. Verified tokens are remembered until they expire.
type Tokens struct {
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	verified *cache.LRU[string]
}

func NewTokens(secret []byte, ttl time.Duration, now func() time.Time) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{
		secret:   secret,
		ttl:      ttl,
		now:      now,
		verified: cache.NewLRU[string](verifiedCacheSize, now),
	}
}

func (t *Tokens) Issue(u storage.User) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(t.ttl).Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the user id the token was issued for.
func (t *Tokens) Verify(raw string) (string, error) {
	if sub, ok := t.verified.Get(raw); ok {
		return sub, nil
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return t.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
		t.verified.Set(raw, sub, exp.Time)
	}
	return sub, nil
}
