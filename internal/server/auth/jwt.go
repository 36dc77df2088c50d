// Package auth implements the credential primitives of the registry:
// bcrypt password hashing and HS256-signed bearer tokens.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/registryauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind labels what a token may be used for. Access and refresh tokens
// share one payload shape; the kind claim keeps a refresh token from passing
// as an access token at a protected endpoint and vice versa.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the token payload: registered claims (sub, exp, iat, jti)
// plus the kind marker.
type Claims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"kind"`
}

// GenerateToken mints a signed token for subject with the given kind and
// validity window. Every token gets a fresh jti so a future revocation set
// has something to key on.
func GenerateToken(subject string, kind TokenKind, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Kind: kind,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// SubjectFromToken verifies signature, expiry, subject presence, and kind,
// and returns the subject. Failures are classified: an otherwise valid but
// expired token yields common.ErrTokenExpired, everything else yields
// common.ErrTokenInvalid. The caller still has to confirm the subject
// exists in the store.
func SubjectFromToken(tokenString string, kind TokenKind, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrTokenInvalid
	}

	if !token.Valid {
		return "", common.ErrTokenInvalid
	}

	if claims.Subject == "" {
		return "", common.ErrTokenInvalid
	}

	if claims.Kind != kind {
		return "", common.ErrTokenInvalid
	}

	return claims.Subject, nil
}
