package auth

import "errors"

var (
	// ErrMissingToken is returned when no bearer token accompanies the request.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrKeySetUnavailable is returned when the issuer's key set cannot be fetched
	// and no cached copy is usable.
	ErrKeySetUnavailable = errors.New("key set unavailable")

	// ErrInvalidSignature is returned when the token signature does not validate
	// against any key in the issuer's key set.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrTokenExpired is returned when the token's expiry claim is in the past.
	// Callers should re-authenticate rather than retry the same token.
	ErrTokenExpired = errors.New("token expired")
)

// ClaimsError reports a claim constraint violation (issuer, audience, subject).
type ClaimsError struct {
	Reason string
}

func (e *ClaimsError) Error() string { return "invalid claims: " + e.Reason }
