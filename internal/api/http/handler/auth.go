package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/contextdb/contextdb/internal/logger"
	"github.com/contextdb/contextdb/internal/model"
	"github.com/contextdb/contextdb/internal/token"
)

// AuthService is the slice of the auth service the handlers need.
type AuthService interface {
	Signup(ctx context.Context, email, name, password string) (model.User, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// Auth serves first-party signup and login.
type Auth struct {
	service AuthService
	logger  *logger.Logger
}

// NewAuth creates the auth handlers.
func NewAuth(service AuthService, logger *logger.Logger) *Auth {
	return &Auth{service: service, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

const minPasswordLength = 8

// Signup handles POST /api/auth/signup.
func (h *Auth) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid payload"})
	}

	if strings.TrimSpace(req.Email) == "" || len(req.Password) < minPasswordLength {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Email and password (min 8 chars) are required",
		})
	}

	_, err := h.service.Signup(c.Request().Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrAlreadyExists) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "User with this email already exists"})
		}
		h.logger.Error("Auth handler: signup failed", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create user"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Login handles POST /api/auth/login.
func (h *Auth) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid payload"})
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email and password are required"})
	}

	accessToken, err := h.service.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid email or password"})
		}
		h.logger.Error("Auth handler: login failed", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to log in"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int(token.AccessTTL.Seconds()),
	})
}
