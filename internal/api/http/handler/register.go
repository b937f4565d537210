package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/contextdb/contextdb/internal/logger"
)

// RegisterProxy forwards dynamic client registration requests verbatim to the
// identity provider and relays the response unchanged.
type RegisterProxy struct {
	endpoint string
	client   *http.Client
	logger   *logger.Logger
}

// NewRegisterProxy creates the registration proxy targeting endpoint.
func NewRegisterProxy(endpoint string, logger *logger.Logger) *RegisterProxy {
	return &RegisterProxy{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

// Handle proxies POST /register.
func (p *RegisterProxy) Handle(c echo.Context) error {
	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodPost, p.endpoint, c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build registration request")
	}
	req.Header.Set(echo.HeaderContentType, c.Request().Header.Get(echo.HeaderContentType))

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("Register proxy: upstream request failed",
			"endpoint", p.endpoint,
			"error", err.Error())
		return echo.NewHTTPError(http.StatusBadGateway, "registration endpoint unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Error("Register proxy: failed to read upstream response", "error", err.Error())
		return echo.NewHTTPError(http.StatusBadGateway, "failed to read registration response")
	}

	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}

	return c.Blob(resp.StatusCode, contentType, body)
}
