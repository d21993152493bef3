package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/Anvoria/identra/internal/credentials"
	"github.com/Anvoria/identra/internal/domain/magiclink"
	"github.com/Anvoria/identra/internal/domain/session"
	"github.com/Anvoria/identra/internal/domain/token"
	"github.com/Anvoria/identra/internal/domain/user"
)

// Service orchestrates the user trust domain: credential issuance, login
// flows, per-request authentication, and CSRF token derivation.
type Service struct {
	Users    user.Repository
	Identity user.Service
	Sessions session.Service
	Links    magiclink.Service
	Tokens   *token.Service

	csrfSecret []byte
}

// NewService creates a new auth service
func NewService(
	users user.Repository,
	identity user.Service,
	sessions session.Service,
	links magiclink.Service,
	tokens *token.Service,
	csrfSecret string,
) *Service {
	return &Service{
		Users:      users,
		Identity:   identity,
		Sessions:   sessions,
		Links:      links,
		Tokens:     tokens,
		csrfSecret: []byte(csrfSecret),
	}
}

// issueCredential mints a token for u and opens the matching session record.
func (s *Service) issueCredential(u *user.User) (*Credential, error) {
	issued, err := s.Tokens.Issue(token.IdentityClaims{
		UserID:        u.ID,
		Username:      u.Username,
		EmailVerified: u.EmailVerified,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Sessions.Open(u.ID, issued.JTI, issued.IssuedAt, issued.ExpiresAt); err != nil {
		return nil, err
	}

	return &Credential{
		User:      u,
		Issued:    issued,
		CSRFToken: s.CSRFToken(issued.JTI),
	}, nil
}

// Anonymous creates a fresh anonymous identity and logs it in.
func (s *Service) Anonymous() (*Credential, error) {
	u, err := s.Identity.CreateAnonymous()
	if err != nil {
		return nil, err
	}
	return s.issueCredential(u)
}

// Login authenticates an email/password pair. All failures collapse into
// ErrInvalidCredentials.
func (s *Service) Login(email, password string) (*Credential, error) {
	u, err := s.Users.FindByEmail(user.NormalizeEmail(email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if u.PasswordHash == nil || !credentials.VerifyPassword(password, *u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issueCredential(u)
}

// VerifyMagicLink consumes a single-use code and logs its owner in.
func (s *Service) VerifyMagicLink(code string) (*Credential, string, error) {
	verified, err := s.Links.Verify(code)
	if err != nil {
		return nil, "", err
	}

	cred, err := s.issueCredential(verified.User)
	if err != nil {
		return nil, "", err
	}

	return cred, verified.ReturnURL, nil
}

// Logout revokes the session behind the presented credential. Idempotent.
func (s *Service) Logout(userID uint, jti string) error {
	return s.Sessions.Close(userID, jti)
}

// Authenticate resolves a raw token into an identity. The pipeline treats
// every failure mode the same way: signature or temporal failure, revoked
// session, and missing identity all read as "no credential". When the token
// has passed half its lifetime the result carries a rotation credential;
// rotation failure never fails the request.
func (s *Service) Authenticate(raw string) (*AuthResult, error) {
	claims := s.Tokens.Verify(raw)
	if claims == nil {
		return nil, ErrUnauthenticated
	}

	userID := claims.UserID()
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	valid, err := s.Sessions.IsValid(userID, claims.JTI())
	if err != nil || !valid {
		return nil, ErrUnauthenticated
	}

	u, err := s.Users.FindByID(userID)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	result := &AuthResult{User: u, Claims: claims}

	if s.Tokens.ShouldRefresh(claims) {
		rotation, err := s.issueCredential(u)
		if err != nil {
			slog.Warn("Silent token refresh failed", "user_id", u.ID, "error", err)
		} else {
			result.Rotation = rotation
		}
	}

	return result, nil
}

// CSRFToken derives the session-bound CSRF token for a jti.
func (s *Service) CSRFToken(jti string) string {
	mac := hmac.New(sha256.New, s.csrfSecret)
	mac.Write([]byte(jti))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCSRF compares a client-supplied CSRF token against the value bound
// to the session, in constant time.
func (s *Service) VerifyCSRF(jti, provided string) bool {
	if provided == "" {
		return false
	}
	return credentials.Equal(s.CSRFToken(jti), provided)
}
