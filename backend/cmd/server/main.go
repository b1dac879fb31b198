package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"markbook/backend/internal/auth"
	"markbook/backend/internal/gateway"
	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
	"markbook/backend/internal/storage/memstore"
	"markbook/backend/internal/storage/mongostore"
)

const healthServiceName = "markbook.Markbook"

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load environment variables
	envErr := shared.LoadEnv(".env")

	// 1. Load Configuration (validates JWT_SECRET is present)
	cfg, err := shared.LoadServiceConfig("markbook-server")
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := shared.NewLogger(cfg)
	if envErr != nil {
		logger.Warn().Msg(".env file not found, using system environment variables")
	}
	if shared.IsDevelopment(cfg) {
		shared.PrintConfig(logger, cfg)
	}

	// 2. Open storage
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}

	// 3. Token revocation
	revoker, closeRevoker := openRevoker(cfg, logger)

	// 4. Services + one-time provisioning
	services := gateway.NewServices(store, revoker, cfg, logger)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := services.Bootstrap(bootCtx); err != nil {
		bootCancel()
		logger.Fatal().Err(err).Msg("failed to provision default accounts")
	}
	bootCancel()

	// 5. HTTP server
	router := gateway.SetupRoutes(services, cfg, logger)
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 6. gRPC health server
	healthCtx, stopHealth := context.WithCancel(context.Background())
	grpcServer, healthServer := startHealthServer(healthCtx, cfg, services, logger)

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	stopHealth()
	if healthServer != nil {
		healthServer.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown error")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	closeRevoker()
	if err := store.Close(ctx); err != nil {
		logger.Error().Err(err).Msg("error closing storage")
	}
	logger.Info().Msg("stopped")
}

func openStore(cfg *shared.ServiceConfig, logger zerolog.Logger) (storage.Store, error) {
	if cfg.Storage.Driver == shared.StorageMemory {
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		return memstore.New(), nil
	}

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB, logger)
	if err != nil {
		return nil, err
	}

	store := mongostore.New(client, db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = shared.DisconnectMongoDB(client)
		return nil, err
	}
	return store, nil
}

func openRevoker(cfg *shared.ServiceConfig, logger zerolog.Logger) (auth.Revoker, func()) {
	if cfg.Redis.Addr == "" {
		if cfg.Storage.Driver == shared.StorageMemory {
			return auth.NewMemoryRevoker(), func() {}
		}
		logger.Warn().Msg("REDIS_ADDR not set; logout will not revoke issued tokens")
		return auth.NoopRevoker{}, func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := auth.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

	return auth.NewRedisRevoker(client), func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing Redis client")
		}
	}
}

// startHealthServer exposes the standard gRPC health service and keeps it in
// step with store reachability until ctx is cancelled. An empty port disables it.
func startHealthServer(ctx context.Context, cfg *shared.ServiceConfig, services *gateway.Services, logger zerolog.Logger) (*grpc.Server, *health.Server) {
	if cfg.GRPCHealthPort == "" {
		return nil, nil
	}

	listener, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		logger.Fatal().Err(err).Str("port", cfg.GRPCHealthPort).Msg("failed to listen for gRPC health")
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	setStatus := func(s grpc_health_v1.HealthCheckResponse_ServingStatus) {
		healthServer.SetServingStatus("", s)
		healthServer.SetServingStatus(healthServiceName, s)
	}
	setStatus(grpc_health_v1.HealthCheckResponse_SERVING)

	go watchStore(ctx, services.Ping, 15*time.Second, setStatus, logger)

	go func() {
		logger.Info().Str("port", cfg.GRPCHealthPort).Msg("gRPC health server listening")
		if err := grpcServer.Serve(listener); err != nil {
			logger.Error().Err(err).Msg("gRPC health server stopped")
		}
	}()

	return grpcServer, healthServer
}

// watchStore pings the store every interval and reports the result until ctx
// is cancelled.
func watchStore(ctx context.Context, ping func(context.Context) error, interval time.Duration, setStatus func(grpc_health_v1.HealthCheckResponse_ServingStatus), logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("storage ping failed")
			setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			continue
		}
		setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	}
}
