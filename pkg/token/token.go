package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"matricare/pkg/domain"
)

const defaultTTL = 24 * time.Hour

var (
	// ErrExpired is returned when a token was valid but has passed its
	// expiry; callers should prompt re-login.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for tokens that fail signature or claim
	// validation for any other reason.
	ErrMalformed = errors.New("invalid token")
)

// Claims is the identity carried by an issued bearer token.
type Claims struct {
	UserID string          `json:"user_id"`
	Email  string          `json:"email"`
	Role   domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Issuer issues and verifies HS256 bearer tokens with a process-wide secret.
// The clock is injectable for expiry tests.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithTTL overrides the default 24h token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock injects the time source used for issuing and verification.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer builds an issuer from the shared signing secret.
func NewIssuer(secret string, options ...Option) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	issuer := &Issuer{
		secret: []byte(secret),
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(issuer)
		}
	}
	return issuer, nil
}

// Issue signs a token embedding the user's identity and role.
func (i *Issuer) Issue(user domain.User) (string, error) {
	now := i.now().UTC()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token, distinguishing expiry from any
// other validation failure.
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}
	if !parsed.Valid || strings.TrimSpace(claims.UserID) == "" {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}
