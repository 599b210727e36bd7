package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrPathMismatch reports a valid token presented for a different object.
var ErrPathMismatch = errors.New("jwt: token not issued for this object")

// MediaClaims authorises a read of a single stored object.
type MediaClaims struct {
	Path string `json:"path"`
	jwtlib.RegisteredClaims
}

// GenerateMediaToken issues a signed read token for path valid for ttl.
func GenerateMediaToken(path, secret string, ttl time.Duration, now time.Time) (string, error) {
	claims := MediaClaims{
		Path: path,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "izzocam",
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseMediaToken validates token and checks it was issued for path.
func ParseMediaToken(token, path, secret string, now time.Time) (*MediaClaims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &MediaClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithIssuer("izzocam"),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*MediaClaims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	if claims.Path != path {
		return nil, ErrPathMismatch
	}
	return claims, nil
}
