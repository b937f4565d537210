package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/contextdb/contextdb/internal/api/httpctx"
	"github.com/contextdb/contextdb/internal/logger"
	"github.com/contextdb/contextdb/internal/model"
)

// ContextReader is the slice of the context service the REST handlers need.
type ContextReader interface {
	Get(ctx context.Context, userID uuid.UUID, name string) (model.Context, error)
	List(ctx context.Context, userID uuid.UUID, tags []string) ([]model.ContextSummary, error)
	Delete(ctx context.Context, userID uuid.UUID, name string) error
}

// Contexts serves the first-party REST API over context documents.
type Contexts struct {
	service ContextReader
	logger  *logger.Logger
}

// NewContexts creates the context REST handlers.
func NewContexts(service ContextReader, logger *logger.Logger) *Contexts {
	return &Contexts{service: service, logger: logger}
}

// contextName extracts the :name parameter. The router matches on the escaped
// path when the URL carries one, so the parameter arrives encoded and needs
// exactly one unescape; otherwise net/http already decoded it and unescaping
// again would corrupt names containing a literal percent.
func contextName(c echo.Context) (string, error) {
	name := c.Param("name")
	if c.Request().URL.RawPath != "" {
		return url.PathUnescape(name)
	}
	return name, nil
}

// List handles GET /api/contexts.
func (h *Contexts) List(c echo.Context) error {
	userID, ok := httpctx.UserIDFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	summaries, err := h.service.List(c.Request().Context(), userID, nil)
	if err != nil {
		h.logger.Error("Contexts handler: list failed", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load contexts"})
	}
	if summaries == nil {
		summaries = []model.ContextSummary{}
	}

	return c.JSON(http.StatusOK, echo.Map{"contexts": summaries})
}

// Get handles GET /api/contexts/:name.
func (h *Contexts) Get(c echo.Context) error {
	userID, ok := httpctx.UserIDFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	name, err := contextName(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid context name"})
	}

	doc, err := h.service.Get(c.Request().Context(), userID, name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Not found"})
		}
		h.logger.Error("Contexts handler: get failed", "name", name, "error", err.Error())
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load context"})
	}

	return c.JSON(http.StatusOK, echo.Map{"context": doc})
}

// Delete handles DELETE /api/contexts/:name.
func (h *Contexts) Delete(c echo.Context) error {
	userID, ok := httpctx.UserIDFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	name, err := contextName(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid context name"})
	}

	if err := h.service.Delete(c.Request().Context(), userID, name); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Not found"})
		}
		h.logger.Error("Contexts handler: delete failed", "name", name, "error", err.Error())
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete context"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
