package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	httpapi "github.com/contextdb/contextdb/internal/api/http"
	"github.com/contextdb/contextdb/internal/config"
	"github.com/contextdb/contextdb/internal/logger"
	mcpapi "github.com/contextdb/contextdb/internal/mcp"
	"github.com/contextdb/contextdb/internal/model"
	"github.com/contextdb/contextdb/internal/repository/postgres"
	"github.com/contextdb/contextdb/internal/service"
	"github.com/contextdb/contextdb/internal/session"
	storage "github.com/contextdb/contextdb/internal/storage/minio"
	"github.com/contextdb/contextdb/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	contextRepo := postgres.NewContextRepository(db)
	tokenManager := token.NewJWT(cfg.JWT.Secret)

	bearerVerifier, err := token.NewBearerVerifier(ctx, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.JWKSEndpoint())
	if err != nil {
		logger.Fatal("failed to initialize bearer verifier", "error", err)
	}

	archive, err := newArchive(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize archive", "error", err)
	}

	identityService := service.NewIdentity(userRepo, cfg.Auth.SyncUsers, logger)
	authService := service.NewAuth(userRepo, tokenManager, logger)
	contextService := service.NewContext(contextRepo, archive, logger)

	sessions := session.NewRegistry()
	mcpServer := mcpapi.NewServer(contextService, sessions, logger.WithComponent("mcp"))

	router := httpapi.New(cfg, bearerVerifier, identityService, tokenManager, authService, contextService, mcpServer, logger.WithComponent("http"))
	e := router.Register()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf(":%s", cfg.HTTP.Port)
		logger.Info("Starting server on", "address", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
		}
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

// newArchive creates the object storage client when archiving is enabled.
func newArchive(ctx context.Context, cfg *config.Config, logger *logger.Logger) (model.Archive, error) {
	if !cfg.Archive.Enabled {
		logger.Info("archive disabled, deleted contexts will not be exported")
		return nil, nil
	}

	minioClient, err := minio.New(cfg.Archive.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Archive.AccessKey, cfg.Archive.SecretKey, ""),
		Secure: cfg.Archive.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	client, err := storage.NewClient(ctx, minioClient, cfg.Archive.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive client: %w", err)
	}

	return client, nil
}

func logAppVersion() {
	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
