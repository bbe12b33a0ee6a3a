package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultCookieIssuer   = "quoteshare"
	defaultCookieAudience = "quoteshare-web"
)

var defaultCookieLeeway = 30 * time.Second

var (
	ErrInvalidCookie = errors.New("invalid session cookie")
	ErrSecretMissing = errors.New("signing secret required")
)

// CookieSigner wraps opaque session tokens in an HS256 JWT so a cookie
// cannot be forged or altered without the server secret. The token itself
// is still resolved against the server-side session store.
type CookieSigner struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewCookieSigner builds a signer keyed by secret.
func NewCookieSigner(secret string, ttl time.Duration) (*CookieSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretMissing
	}
	return &CookieSigner{
		secret: []byte(secret),
		ttl:    ttl,
		leeway: defaultCookieLeeway,
		now:    time.Now,
	}, nil
}

// Sign returns the cookie value carrying sessionToken.
func (s *CookieSigner) Sign(sessionToken string) (string, error) {
	if strings.TrimSpace(sessionToken) == "" {
		return "", ErrInvalidCookie
	}
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   sessionToken,
		Issuer:    defaultCookieIssuer,
		Audience:  jwt.ClaimStrings{defaultCookieAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the cookie signature and expiry and returns the session token.
func (s *CookieSigner) Verify(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrInvalidCookie
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(defaultCookieIssuer),
		jwt.WithAudience(defaultCookieAudience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidCookie
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidCookie
	}
	return claims.Subject, nil
}

// TTL reports how long signed cookies stay valid.
func (s *CookieSigner) TTL() time.Duration {
	return s.ttl
}
