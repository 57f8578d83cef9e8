package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/inkhouse/scribe/config"
)

// Identity is the verified caller of a single request.
type Identity struct {
	Subject string
	Admin   bool
}

// Verifier validates bearer tokens against the issuer's remote key set.
type Verifier struct {
	issuer       string
	audience     string
	adminSubject string
	keys         *keySet
}

// NewVerifier builds a Verifier from auth configuration. The key-set cache
// starts empty and is populated on first use.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		adminSubject: cfg.AdminSubject,
		keys:         newKeySet(cfg.JWKSURL, cfg.CacheTTL, cfg.FetchTimeout),
	}
}

// BearerFromHeader extracts the token from an Authorization header value.
// An empty result means no credential was presented.
func BearerFromHeader(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Verify checks the raw token's signature and claims and returns the caller
// identity. Admin status derives solely from the verified subject claim,
// never from anything the caller supplies in the request body.
func (v *Verifier) Verify(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	keyfunc := func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token has no kid header", ErrInvalidSignature)
		}
		return v.keys.Key(ctx, kid)
	}

	token, err := jwt.Parse(raw, keyfunc, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		switch {
		case errors.Is(err, ErrKeySetUnavailable):
			return Identity{}, err
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrTokenExpired
		case errors.Is(err, ErrInvalidSignature), errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Identity{}, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Identity{}, &ClaimsError{Reason: "malformed token"}
		default:
			return Identity{}, &ClaimsError{Reason: err.Error()}
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, &ClaimsError{Reason: "unexpected claims type"}
	}

	iss, err := claims.GetIssuer()
	if err != nil || iss != v.issuer {
		return Identity{}, &ClaimsError{Reason: "issuer mismatch"}
	}
	aud, err := claims.GetAudience()
	if err != nil || !containsAudience(aud, v.audience) {
		return Identity{}, &ClaimsError{Reason: "audience mismatch"}
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return Identity{}, &ClaimsError{Reason: "subject missing"}
	}

	return Identity{
		Subject: sub,
		Admin:   v.adminSubject != "" && sub == v.adminSubject,
	}, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// Warm pre-fetches the key set so the first request does not pay for it.
// Failures are non-fatal; the cache will retry lazily.
func (v *Verifier) Warm(ctx context.Context) {
	warmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = v.keys.refresh(warmCtx, "")
}
