package token

import (
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

// Claims wraps a verified token and exposes the claims this service cares about.
type Claims struct {
	Token jwt.Token
}

// Subject returns the token subject.
func (c *Claims) Subject() string {
	sub, _ := c.Token.Subject()
	return sub
}

// UserID parses the subject as a numeric identity ID. Returns 0 when the
// subject is not numeric (admin tokens carry an email subject).
func (c *Claims) UserID() uint {
	id, err := strconv.ParseUint(c.Subject(), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// JTI returns the token's unique identifier.
func (c *Claims) JTI() string {
	jti, _ := c.Token.JwtID()
	return jti
}

// Username returns the username claim.
func (c *Claims) Username() string {
	var v string
	_ = c.Token.Get("username", &v)
	return v
}

// EmailVerified returns the email_verified claim.
func (c *Claims) EmailVerified() bool {
	var v bool
	_ = c.Token.Get("email_verified", &v)
	return v
}

// Role returns the role claim, empty for user-domain tokens.
func (c *Claims) Role() string {
	var v string
	_ = c.Token.Get("role", &v)
	return v
}

// IssuedAt returns the iat claim.
func (c *Claims) IssuedAt() time.Time {
	iat, _ := c.Token.IssuedAt()
	return iat
}

// Expiration returns the exp claim.
func (c *Claims) Expiration() time.Time {
	exp, _ := c.Token.Expiration()
	return exp
}
