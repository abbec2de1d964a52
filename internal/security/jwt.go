package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the fixed validity of a session token.
const SessionTTL = 7 * 24 * time.Hour

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

var (
	errEmptySecret = errors.New("jwt: empty secret")
	errNoSubject   = errors.New("jwt: missing userId claim")
)

// IssueSessionToken signs a session token for userID valid from now for SessionTTL.
func IssueSessionToken(secret, userID string, now time.Time) (string, error) {
	if secret == "" {
		return "", errEmptySecret
	}
	if strings.TrimSpace(userID) == "" {
		return "", errNoSubject
	}
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}

// ParseSessionToken verifies signature and expiry and returns the claims.
func ParseSessionToken(secret, token string) (*SessionClaims, error) {
	return ParseSessionTokenAt(secret, token, time.Now())
}

// ParseSessionTokenAt is ParseSessionToken with expiry checked against now.
func ParseSessionTokenAt(secret, token string, now time.Time) (*SessionClaims, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("jwt: parse: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("jwt: invalid token")
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, errNoSubject
	}
	return claims, nil
}
