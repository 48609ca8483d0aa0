// Package auth resolves the identity behind incoming API requests. Identity
// management itself lives in the fronting auth service; this package only
// verifies the shared bearer token and reads the identity headers that
// service injects.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// Header names set by the fronting auth service.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// ErrUnauthorized is returned when a request carries a missing or wrong
// bearer token, or no user identity.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Identity is the authenticated user behind a request.
type Identity struct {
	// UserID is the opaque user identifier all persisted records are keyed by.
	UserID string

	// Name is an optional display name used for greetings.
	Name string
}

// Verifier extracts and checks the identity on a request.
type Verifier interface {
	Verify(r *http.Request) (Identity, error)
}

// TokenVerifier verifies a static shared bearer token and reads the identity
// headers. An empty token disables the token check (local development), but a
// user ID header is always required.
type TokenVerifier struct {
	token string
}

var _ Verifier = (*TokenVerifier)(nil)

// NewTokenVerifier creates a [TokenVerifier] for the given shared token.
func NewTokenVerifier(token string) *TokenVerifier {
	return &TokenVerifier{token: token}
}

// Verify implements [Verifier].
func (v *TokenVerifier) Verify(r *http.Request) (Identity, error) {
	if v.token != "" {
		raw := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(v.token)) != 1 {
			return Identity{}, ErrUnauthorized
		}
	}

	id := Identity{
		UserID: r.Header.Get(HeaderUserID),
		Name:   r.Header.Get(HeaderUserName),
	}
	if id.UserID == "" {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}
