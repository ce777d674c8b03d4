package tokenutil

import (
	"fmt"

	jwt "github.com/golang-jwt/jwt/v4"
)

// IsAuthorized validates the token signature and expiry against the secret.
// Tokens are minted out of band; the service only verifies them.
func IsAuthorized(requestToken, secret string) (bool, error) {
	_, err := jwt.Parse(requestToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
