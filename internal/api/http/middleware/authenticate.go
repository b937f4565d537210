package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/contextdb/contextdb/internal/api/httpctx"
	"github.com/contextdb/contextdb/internal/logger"
	"github.com/contextdb/contextdb/internal/model"
)

// Authenticate protects the first-party API with access tokens issued by the
// login endpoint.
type Authenticate struct {
	tokenManager model.TokenManager
	logger       *logger.Logger
}

// NewAuthenticate creates the first-party token middleware.
func NewAuthenticate(tokenManager model.TokenManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenManager: tokenManager, logger: logger}
}

// Handle parses the Authorization header, validates the access token and
// stores the user ID in the request context.
func (m *Authenticate) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || tokenString == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
		}

		userID, err := m.tokenManager.ParseAccessToken(tokenString)
		if err != nil {
			m.logger.Info("Authenticate middleware: token rejected", "error", err.Error())
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
		}

		r := c.Request()
		c.SetRequest(r.WithContext(httpctx.WithUserID(r.Context(), userID)))

		return next(c)
	}
}
