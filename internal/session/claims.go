package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are display-only details decoded from the credential.
type Claims struct {
	Subject   string
	Username  string
	ExpiresAt time.Time
}

// Claims decodes the credential without verifying it; the signature is the
// ledger's business. Opaque credentials yield empty claims.
func (s *Service) Claims() Claims {
	token, ok := s.Credential()
	if !ok {
		return Claims{}
	}
	return parseClaims(token)
}

func parseClaims(token string) Claims {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}
	}
	var c Claims
	c.Subject, _ = mc.GetSubject()
	if u, ok := mc["username"].(string); ok {
		c.Username = u
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c
}
