// Package http wires the echo router: public discovery endpoints, the
// bearer-protected MCP transports and the first-party API.
package http

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/contextdb/contextdb/internal/api/http/handler"
	"github.com/contextdb/contextdb/internal/api/http/middleware"
	"github.com/contextdb/contextdb/internal/config"
	"github.com/contextdb/contextdb/internal/logger"
	mcpapi "github.com/contextdb/contextdb/internal/mcp"
	"github.com/contextdb/contextdb/internal/model"
)

// Router assembles the HTTP surface.
type Router struct {
	cfg            *config.Config
	bearerVerifier middleware.BearerVerifier
	identity       middleware.IdentityResolver
	tokenManager   model.TokenManager
	authService    handler.AuthService
	contextService handler.ContextReader
	mcpServer      *mcpapi.Server
	logger         *logger.Logger
}

// New creates a Router with all dependencies injected.
func New(
	cfg *config.Config,
	bearerVerifier middleware.BearerVerifier,
	identity middleware.IdentityResolver,
	tokenManager model.TokenManager,
	authService handler.AuthService,
	contextService handler.ContextReader,
	mcpServer *mcpapi.Server,
	logger *logger.Logger,
) *Router {
	return &Router{
		cfg:            cfg,
		bearerVerifier: bearerVerifier,
		identity:       identity,
		tokenManager:   tokenManager,
		authService:    authService,
		contextService: contextService,
		mcpServer:      mcpServer,
		logger:         logger,
	}
}

// Register builds the echo instance with all routes and middleware.
func (r *Router) Register() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.NewLogging(r.logger).Handle)
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{r.cfg.CORS.Origin},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))

	e.GET("/health", handler.Health)

	discovery := handler.NewDiscovery(r.cfg.Auth, r.cfg.HTTP.BaseURL)
	e.GET("/.well-known/oauth-protected-resource", discovery.ProtectedResource)
	e.GET("/.well-known/oauth-protected-resource/:resource", discovery.ProtectedResource)
	e.GET("/.well-known/oauth-authorization-server", discovery.AuthorizationServer)

	registerProxy := handler.NewRegisterProxy(r.cfg.Auth.RegistrationEndpoint(), r.logger)
	e.POST("/register", registerProxy.Handle)

	bearer := middleware.NewBearer(
		r.bearerVerifier,
		r.identity,
		r.cfg.Auth.AuthorizationEndpoint(),
		r.cfg.Auth.TokenEndpoint(),
		r.logger,
	)

	e.POST("/mcp", echo.WrapHandler(r.mcpServer.StreamableHTTPHandler()), bearer.Handle)

	sse := r.mcpServer.SSEServer()
	e.GET("/sse", echo.WrapHandler(sse.SSEHandler()), bearer.Handle)
	e.POST("/messages", echo.WrapHandler(sse.MessageHandler()))

	authHandler := handler.NewAuth(r.authService, r.logger)
	contextsHandler := handler.NewContexts(r.contextService, r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenManager, r.logger)

	api := e.Group("/api")
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/login", authHandler.Login)

	contexts := api.Group("/contexts", authenticate.Handle)
	contexts.GET("", contextsHandler.List)
	contexts.GET("/:name", contextsHandler.Get)
	contexts.DELETE("/:name", contextsHandler.Delete)

	return e
}
