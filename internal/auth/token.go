package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures, and issuer
	// mismatches. Callers treat it as unauthenticated.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrTokenExpired is returned for a well-signed token past its expiry.
	ErrTokenExpired = errors.New("access token expired")
)

// Principal is a verified caller identity. Core operations receive it as an
// explicit argument; nothing reads it from ambient state.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// Claims is the access token payload: subject id, email, and the single
// current role.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HMAC-signed access tokens.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time // injectable clock for testing
}

// NewTokenIssuer creates an issuer signing with the given symmetric key.
func NewTokenIssuer(key, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		key:    []byte(key),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint produces a signed access token for the principal.
func (ti *TokenIssuer) Mint(p Principal) (string, error) {
	now := ti.now().UTC()
	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, and expiry, and returns the principal
// carried by the token. Expired tokens are reported as ErrTokenExpired so
// callers can distinguish "log in again" from garbage input. Audience is
// deliberately not validated; this is a single-audience deployment.
func (ti *TokenIssuer) Verify(tokenString string) (Principal, error) {
	return ti.parse(tokenString, false)
}

// VerifyAllowExpired validates everything Verify does except expiry. The
// refresh flow uses it to recover the caller's identity from a stale access
// token before consulting the refresh token store.
func (ti *TokenIssuer) VerifyAllowExpired(tokenString string) (Principal, error) {
	return ti.parse(tokenString, true)
}

func (ti *TokenIssuer) parse(tokenString string, allowExpired bool) (Principal, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.key, nil
	}, jwt.WithIssuer(ti.issuer), jwt.WithTimeFunc(ti.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			if !allowExpired {
				return Principal{}, ErrTokenExpired
			}
			// Validation errors are joined, so expiry alone is not proof the
			// rest of the token checked out.
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) || claims.Issuer != ti.issuer {
				return Principal{}, ErrTokenInvalid
			}
		} else {
			return Principal{}, ErrTokenInvalid
		}
	} else if !tok.Valid {
		return Principal{}, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return Principal{}, ErrTokenInvalid
	}

	return Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
