// Package auth signs and validates session tokens. A session token asserts
// an account id and nothing else; elevation is never carried in it.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into every session token.
const Issuer = "passm"

// Claims are the registered JWT claims; the account id travels in Subject.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 session token for accountID, issued at
// issuedAt and valid for validity.
func GenerateToken(accountID string, secretKey []byte, issuedAt time.Time, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(validity)),
		},
	})

	return token.SignedString(secretKey)
}

// GetAccountIDFromToken validates signature, issuer and expiry against now
// and returns the token subject. Expired tokens yield common.ErrTokenExpired;
// every other defect yields common.ErrInvalidToken.
func GetAccountIDFromToken(tokenString string, secretKey []byte, now func() time.Time) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}
