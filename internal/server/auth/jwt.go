package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the username in "user" next to the registered jti, iat
// and exp.
type Claims struct {
	User string `json:"user"`
	jwt.RegisteredClaims
}

// Token is a signed access token and the claims it was minted with.
type Token struct {
	Value     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// GenerateToken signs an HS256 token for user. Timestamps are truncated to
// whole seconds, as they are encoded on the wire.
func GenerateToken(user, jti string, secretKey []byte, now time.Time, lifetime time.Duration) (*Token, error) {
	iat := now.Truncate(time.Second)
	exp := iat.Add(lifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return nil, err
	}

	return &Token{Value: tokenString, JTI: jti, IssuedAt: iat, ExpiresAt: exp}, nil
}

// ParseToken checks the signature and expiry of tokenString against now.
// Every failure is a *TokenError.
func ParseToken(tokenString string, secretKey []byte, now time.Time) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &TokenError{Kind: KindExpired, Err: err}
		}
		return nil, &TokenError{Kind: KindMalformed, Err: err}
	}

	if !token.Valid || claims.User == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, &TokenError{Kind: KindMalformed}
	}

	return claims, nil
}
