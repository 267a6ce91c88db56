package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCookie is returned when a session cookie fails signature or
// claim validation. Callers treat it as "no session".
var ErrInvalidCookie = errors.New("invalid session cookie")

// CookieSigner wraps opaque session tokens in signed JWTs so a client
// cannot mint or alter its own session token.
type CookieSigner struct {
	keySet *KeySet
	issuer string
}

// NewCookieSigner creates a signer issuing cookies under the given
// issuer URL.
func NewCookieSigner(keySet *KeySet, issuer string) *CookieSigner {
	return &CookieSigner{keySet: keySet, issuer: issuer}
}

// Issue signs a cookie value carrying the session token as the jti claim.
func (s *CookieSigner) Issue(sessionToken string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"jti": sessionToken,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(lifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keySet.RSAKeyID()

	return token.SignedString(s.keySet.RSAPrivateKey())
}

// Parse validates a cookie value and extracts the session token.
func (s *CookieSigner) Parse(cookieValue string) (string, error) {
	token, err := jwt.Parse(cookieValue, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.keySet.RSAPublicKey(), nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidCookie
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidCookie
	}
	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return "", ErrInvalidCookie
	}
	return jti, nil
}
