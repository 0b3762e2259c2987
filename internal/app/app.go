// Package app wires the video library together: configuration, logging,
// storage, the catalog cache, the HTTP API and the gRPC server. It also
// handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/vidlib/internal/auth"
	"github.com/patric-chuzhbe/vidlib/internal/catalog"
	"github.com/patric-chuzhbe/vidlib/internal/config"
	"github.com/patric-chuzhbe/vidlib/internal/db/jsondb"
	"github.com/patric-chuzhbe/vidlib/internal/db/memorystorage"
	"github.com/patric-chuzhbe/vidlib/internal/db/mongodb"
	"github.com/patric-chuzhbe/vidlib/internal/db/postgresdb"
	"github.com/patric-chuzhbe/vidlib/internal/db/storage"
	"github.com/patric-chuzhbe/vidlib/internal/grpcserver"
	"github.com/patric-chuzhbe/vidlib/internal/ipchecker"
	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/ratelimit"
	"github.com/patric-chuzhbe/vidlib/internal/router"
	"github.com/patric-chuzhbe/vidlib/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App owns the long-lived parts of the service.
type App struct {
	cfg          *config.Config
	db           storage.Storage
	catalog      *catalog.Cache
	stopCatalog  context.CancelFunc
	httpHandler  http.Handler
	grpcServer   *grpc.Server
	grpcListener net.Listener
}

// New builds the application from the configuration layers. On error every
// resource opened so far is released.
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if app.cfg.UsesDevelopmentSecret() {
		logger.Log.Warnln("JWT_SECRET_KEY is not set, tokens are signed with the development secret")
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	if err := app.wire(); err != nil {
		if closeErr := app.db.Close(); closeErr != nil {
			logger.Log.Debugln("Error calling the `app.db.Close()`: ", zap.Error(closeErr))
		}
		return nil, err
	}

	return app, nil
}

func (a *App) wire() error {
	a.catalog = catalog.New(a.db, a.cfg.CatalogCacheTTL)

	theAuth := auth.New(a.db, []byte(a.cfg.JWTSecretKey))
	svc := service.New(a.db, a.catalog, theAuth)

	if a.cfg.CatalogSeedPath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.DBConnectionTimeout)
		count, err := svc.LoadCatalogSeed(ctx, a.cfg.CatalogSeedPath)
		cancel()
		if err != nil {
			return err
		}
		logger.Log.Infoln("catalog seeded", "path", a.cfg.CatalogSeedPath, "entries", count)
	}

	trusted, err := ipchecker.New(a.cfg.TrustedSubnet)
	if err != nil {
		return err
	}
	if trusted.IsTrustedSubnetEmpty() {
		logger.Log.Infoln("TRUSTED_SUBNET is empty, internal endpoints are closed")
	}

	a.httpHandler = router.New(
		svc,
		theAuth,
		trusted,
		ratelimit.New(a.cfg.AuthRateLimit, a.cfg.AuthRateBurst),
		router.WithRequestTimeout(a.cfg.RequestTimeout),
		router.WithCORSAllowedOrigins(a.cfg.CORSAllowedOrigins),
	)

	if a.cfg.GRPCAddr != "" {
		a.grpcServer, a.grpcListener, err = grpcserver.NewGRPCServer(
			a.cfg.GRPCAddr,
			grpcserver.NewLibraryHandler(svc),
			theAuth,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// Run serves HTTP (and gRPC when configured) until an interrupt arrives or a
// server fails, then shuts everything down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalogCtx, stopCatalog := context.WithCancel(context.Background())
	a.stopCatalog = stopCatalog
	a.catalog.Run(catalogCtx, refreshInterval(a.cfg.CatalogCacheTTL))
	a.catalog.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `a.catalog.ListenErrors()`:", zap.Error(err))
	})

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: a.cfg.RequestTimeout,
	}

	serverErrCh := make(chan error, 2)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	if a.grpcServer != nil {
		logger.Log.Infoln("gRPC server running", "GRPCAddr", a.grpcListener.Addr().String())
		go func() {
			serverErrCh <- a.grpcServer.Serve(a.grpcListener)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Stopping servers and closing the storage...")
		return a.shutdown(server)

	case err := <-serverErrCh:
		shutdownErr := a.shutdown(server)
		return errors.Join(fmt.Errorf("server error: %w", err), shutdownErr)
	}
}

func (a *App) shutdown(server *http.Server) error {
	a.stopCatalog()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			a.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			a.grpcServer.Stop()
		}
	}

	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage close error: %w", err))
	}

	return errors.Join(errs...)
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func refreshInterval(ttl time.Duration) time.Duration {
	return max(ttl/2, time.Second)
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.MongoURI != "" {
		return models.StorageTypeMongo
	}

	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypeMongo:
		return mongodb.New(
			context.Background(),
			cfg.MongoURI,
			cfg.MongoDatabase,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
