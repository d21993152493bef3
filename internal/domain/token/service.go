package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/Anvoria/identra/internal/credentials"
)

// Options configure a token service instance. Each trust domain (user, admin)
// runs its own instance with a distinct secret, issuer, and audience.
type Options struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// IdentityClaims are the identity fields embedded in a user-domain token.
type IdentityClaims struct {
	UserID        uint
	Username      string
	EmailVerified bool
}

// Issued describes a freshly minted token.
type Issued struct {
	Raw       string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues and verifies signed, time-bounded tokens for one trust domain.
type Service struct {
	key      jwk.Key
	issuer   string
	audience string
	ttl      time.Duration
}

// NewService creates a token service. An empty secret is a configuration
// error and fails fast.
func NewService(opts Options) (*Service, error) {
	if opts.Secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}

	key, err := jwk.Import([]byte(opts.Secret))
	if err != nil {
		return nil, fmt.Errorf("token: failed to import signing secret: %w", err)
	}

	return &Service{
		key:      key,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      opts.TTL,
	}, nil
}

// Issue mints a token carrying the identity claims plus a fresh random jti.
// The caller is responsible for persisting the matching session record.
func (s *Service) Issue(ic IdentityClaims) (*Issued, error) {
	return s.issue(jwt.NewBuilder().
		Subject(strconv.FormatUint(uint64(ic.UserID), 10)).
		Claim("username", ic.Username).
		Claim("email_verified", ic.EmailVerified))
}

// IssueSubject mints a token for an arbitrary subject with extra claims.
// Used by the admin domain for its role-marked operator token.
func (s *Service) IssueSubject(subject string, extra map[string]any) (*Issued, error) {
	b := jwt.NewBuilder().Subject(subject)
	for k, v := range extra {
		b = b.Claim(k, v)
	}
	return s.issue(b)
}

func (s *Service) issue(b *jwt.Builder) (*Issued, error) {
	now := time.Now()
	exp := now.Add(s.ttl)
	jti := credentials.NewJTI()

	tok, err := b.
		JwtID(jti).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(exp).
		Build()
	if err != nil {
		return nil, fmt.Errorf("token: failed to build claims: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), s.key))
	if err != nil {
		return nil, fmt.Errorf("token: failed to sign: %w", err)
	}

	return &Issued{
		Raw:       string(signed),
		JTI:       jti,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// Verify checks the signature and the standard temporal claims. Any failure
// (malformed, expired, wrong signature, wrong issuer or audience) yields nil;
// callers treat nil uniformly as "no credential".
func (s *Service) Verify(raw string) *Claims {
	tok, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.HS256(), s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		return nil
	}

	return &Claims{Token: tok}
}

// ShouldRefresh reports whether more than half of the token's total lifetime
// has elapsed. Policy only: an unrefreshed token stays valid until its own
// expiry or session revocation.
func (s *Service) ShouldRefresh(c *Claims) bool {
	iat := c.IssuedAt()
	exp := c.Expiration()
	if iat.IsZero() || exp.IsZero() || !exp.After(iat) {
		return false
	}

	lifetime := exp.Sub(iat)
	return time.Since(iat) > lifetime/2
}
