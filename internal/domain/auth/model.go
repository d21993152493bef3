package auth

import (
	"errors"

	"github.com/Anvoria/identra/internal/domain/token"
	"github.com/Anvoria/identra/internal/domain/user"
)

var (
	// ErrInvalidCredentials covers every login failure. Uniform on purpose:
	// the response never reveals which check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when no valid credential accompanies a request
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Credential is a freshly minted token with its session bookkeeping done.
type Credential struct {
	User      *user.User
	Issued    *token.Issued
	CSRFToken string
}

// AuthResult is the outcome of authenticating one request. Rotation, when
// set, is a replacement credential the transport layer should apply; the
// verification itself is side-effect-free.
type AuthResult struct {
	User     *user.User
	Claims   *token.Claims
	Rotation *Credential
}

// Identity is what downstream handlers see on an authenticated request.
type Identity struct {
	User   *user.User
	Claims *token.Claims
}
