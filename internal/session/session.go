// Package session resolves the session cookie into a caller identity.
package session

import (
	"net/http"
	"strings"

	"github.com/sendcertificates/server/internal/security"
)

// CookieName is the name of the session cookie.
const CookieName = "token"

// Outcome is the result of authenticating a request: either an
// authenticated user id or anonymous.
type Outcome struct {
	userID string
}

// Anonymous is the outcome for requests without a valid session.
func Anonymous() Outcome { return Outcome{} }

// Authenticated is the outcome for a verified session of userID.
func Authenticated(userID string) Outcome { return Outcome{userID: userID} }

// UserID returns the authenticated user id and whether one is present.
func (o Outcome) UserID() (string, bool) {
	return o.userID, o.userID != ""
}

// IsAuthenticated reports whether the outcome carries a user id.
func (o Outcome) IsAuthenticated() bool {
	return o.userID != ""
}

// Authenticator verifies session tokens with a fixed secret.
type Authenticator struct {
	secret string
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

// Authenticate reads the session cookie from r. Any failure, whether the
// cookie is absent, malformed, forged or expired, yields Anonymous.
func (a *Authenticator) Authenticate(r *http.Request) Outcome {
	if a == nil || r == nil {
		return Anonymous()
	}
	cookie, errCookie := r.Cookie(CookieName)
	if errCookie != nil {
		return Anonymous()
	}
	return a.AuthenticateToken(cookie.Value)
}

// AuthenticateToken verifies a raw token value.
func (a *Authenticator) AuthenticateToken(token string) Outcome {
	token = strings.TrimSpace(token)
	if a == nil || token == "" {
		return Anonymous()
	}
	claims, errParse := security.ParseSessionToken(a.secret, token)
	if errParse != nil {
		return Anonymous()
	}
	return Authenticated(claims.UserID)
}
