package auth

import (
	"fmt"
	"time"

	"kutter/domain"
	"kutter/errors"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "kutter"

// ISessionValidator verifies a session token issued by the login service.
type ISessionValidator interface {
	Validate(token string) (domain.Identity, error)
}

// CustomClaims defines the structure of the data stored inside the JWT.
// The subject carries the user id.
type CustomClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret []byte) *TokenValidator {
	return &TokenValidator{secret: secret}
}

// Validate parses and validates the signature and expiration of a JWT string.
// Every failure collapses into ErrUnauthorized.
func (v *TokenValidator) Validate(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, errors.ErrUnauthorized
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Identity{}, errors.ErrUnauthorized
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return domain.Identity{}, errors.ErrUnauthorized
	}

	return domain.Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Username: claims.Username,
	}, nil
}

// GenerateToken creates a signed JWT for a specific user.
// Tokens are normally issued by the login service; this exists for tests and local tooling.
func GenerateToken(secret []byte, identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		Email:    identity.Email,
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
