package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/contextdb/contextdb/internal/config"
)

// Discovery serves the RFC 8414-flavored OAuth metadata the chat client uses
// to find the authorization server.
type Discovery struct {
	auth    config.Auth
	baseURL string
}

// NewDiscovery creates the discovery handlers.
func NewDiscovery(auth config.Auth, baseURL string) *Discovery {
	return &Discovery{auth: auth, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// ProtectedResource answers /.well-known/oauth-protected-resource[/:resource].
func (d *Discovery) ProtectedResource(c echo.Context) error {
	resource := d.baseURL
	if suffix := c.Param("resource"); suffix != "" {
		resource = d.baseURL + "/" + suffix
	}

	return c.JSON(http.StatusOK, echo.Map{
		"resource":              resource,
		"authorization_servers": []string{d.auth.Issuer},
		"registration_endpoint": d.baseURL + "/register",
	})
}

// AuthorizationServer answers /.well-known/oauth-authorization-server with
// the issuer's metadata, pointing dynamic registration at the local proxy.
func (d *Discovery) AuthorizationServer(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"issuer":                                d.auth.Issuer,
		"authorization_endpoint":                d.auth.AuthorizationEndpoint(),
		"token_endpoint":                        d.auth.TokenEndpoint(),
		"registration_endpoint":                 d.baseURL + "/register",
		"jwks_uri":                              d.auth.JWKSEndpoint(),
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"token_endpoint_auth_methods_supported": []string{"none", "client_secret_post"},
		"code_challenge_methods_supported":      []string{"S256"},
		"scopes_supported":                      []string{"openid", "profile", "email", "offline_access"},
	})
}
