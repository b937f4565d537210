package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/contextdb/contextdb/internal/api/httpctx"
	"github.com/contextdb/contextdb/internal/logger"
	"github.com/contextdb/contextdb/internal/token"
)

// BearerVerifier validates identity provider bearer tokens.
type BearerVerifier interface {
	Verify(tokenString string) (*token.BearerClaims, error)
}

// IdentityResolver maps an external subject to an internal user ID.
type IdentityResolver interface {
	Resolve(ctx context.Context, subject, email, name string) (uuid.UUID, error)
}

// Bearer protects MCP endpoints with identity provider bearer tokens. On
// failure it answers with the RFC 6750 error envelope plus discovery hints in
// the WWW-Authenticate header.
type Bearer struct {
	verifier         BearerVerifier
	identity         IdentityResolver
	authorizationURI string
	tokenURI         string
	logger           *logger.Logger
}

// NewBearer creates the bearer token middleware.
func NewBearer(verifier BearerVerifier, identity IdentityResolver, authorizationURI, tokenURI string, logger *logger.Logger) *Bearer {
	return &Bearer{
		verifier:         verifier,
		identity:         identity,
		authorizationURI: authorizationURI,
		tokenURI:         tokenURI,
		logger:           logger,
	}
}

// Handle verifies the bearer token, resolves the internal user and stores it
// in the request context.
func (m *Bearer) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return m.challenge(c, http.StatusUnauthorized, "invalid_request", "missing bearer token")
		}

		scheme, tokenString, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
			return m.challenge(c, http.StatusBadRequest, "invalid_request", "malformed authorization header")
		}

		claims, err := m.verifier.Verify(strings.TrimSpace(tokenString))
		if err != nil {
			m.logger.Info("Bearer middleware: token rejected", "error", err.Error())
			return m.challenge(c, http.StatusUnauthorized, "invalid_token", "bearer token is invalid or expired")
		}

		userID, err := m.identity.Resolve(c.Request().Context(), claims.Subject, claims.Email, claims.Name)
		if err != nil {
			m.logger.Error("Bearer middleware: identity resolution failed",
				"subject", claims.Subject,
				"error", err.Error())
			return m.challenge(c, http.StatusUnauthorized, "invalid_token", "identity resolution failed")
		}

		r := c.Request()
		c.SetRequest(r.WithContext(httpctx.WithUserID(r.Context(), userID)))

		return next(c)
	}
}

func (m *Bearer) challenge(c echo.Context, status int, code, description string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, fmt.Sprintf(
		`Bearer realm="contextdb", error=%q, authorization_uri=%q, token_uri=%q`,
		code, m.authorizationURI, m.tokenURI,
	))
	return c.JSON(status, echo.Map{
		"error":             code,
		"error_description": description,
	})
}
