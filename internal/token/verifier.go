package token

import (
	"context"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// BearerClaims are the identity provider claims this service cares about.
type BearerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// BearerVerifier validates RS256 bearer tokens issued by the external
// identity provider against its published JWKS.
type BearerVerifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
}

// NewBearerVerifier creates a verifier that fetches (and refreshes) the
// provider's JWKS from jwksURL.
func NewBearerVerifier(ctx context.Context, issuer, audience, jwksURL string) (*BearerVerifier, error) {
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWKS keyfunc: %w", err)
	}

	return NewBearerVerifierWithKeyfunc(kf.Keyfunc, issuer, audience), nil
}

// NewBearerVerifierWithKeyfunc creates a verifier with an explicit keyfunc
// (used in tests).
func NewBearerVerifierWithKeyfunc(kf jwt.Keyfunc, issuer, audience string) *BearerVerifier {
	return &BearerVerifier{keyfunc: kf, issuer: issuer, audience: audience}
}

// Verify validates signature, issuer, audience and expiry, and returns the
// token claims.
func (v *BearerVerifier) Verify(tokenString string) (*BearerClaims, error) {
	claims := &BearerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bearer token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("bearer token is invalid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("bearer token has no subject")
	}

	return claims, nil
}
