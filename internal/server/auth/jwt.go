// Package auth verifies access tokens and extracts the principal id.
// Token issuance, user accounts and sessions live in an external identity
// service; the vault only checks the signature and trusts the claim.
package auth

import (
	"time"

	"github.com/avolkov/filevault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the authenticated principal id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// GenerateToken signs an HS256 token for the principal. Used by tests and
// local tooling; production tokens come from the identity service.
func GenerateToken(userID string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID: userID,
	})
	return token.SignedString(secretKey)
}

// PrincipalFromToken verifies the token and returns the principal id.
func PrincipalFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", common.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
