package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/bookshelf/internal/adapter/auth"
	"github.com/rl1809/bookshelf/internal/adapter/handler"
	"github.com/rl1809/bookshelf/internal/adapter/storage"
	"github.com/rl1809/bookshelf/internal/config"
	"github.com/rl1809/bookshelf/internal/core/rbac"
	"github.com/rl1809/bookshelf/internal/core/service"
	"github.com/rl1809/bookshelf/internal/logging"
	"github.com/rl1809/bookshelf/internal/port"
)

const defaultConfigPath = "config.yaml"

// configPath resolves the config file: -config flag, then BOOKSHELF_CONFIG,
// then ./config.yaml.
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("BOOKSHELF_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}

func main() {
	configFlag := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, configPath(*configFlag)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", path)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:     %s\n", cfg.Server.GRPCAddr)
	}
	fmt.Println()

	// Database
	dialect := storage.Dialect(cfg.Database.Driver)
	db, err := storage.Open(ctx, dialect, cfg.Database.DSN, storage.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database", "driver", dialect)

	store := storage.NewSQLStore(db, dialect, logger)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	// Lock and idempotency store
	var cache port.CacheRepository
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting redis: %w", err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		cache = storage.NewRedisAdapter(rdb, cfg.Redis.LockTTL, cfg.Redis.IdempotencyTTL)
	} else {
		logger.Warn("redis disabled, book locks are local to this process")
		cache = storage.NewLocalCache(cfg.Redis.IdempotencyTTL)
	}

	// Security
	roleTable, err := config.LoadRoles(cfg.Auth.RolesFile)
	if err != nil {
		return err
	}
	roles, err := rbac.NewRegistry(roleTable)
	if err != nil {
		return fmt.Errorf("building role registry: %w", err)
	}
	tokens, err := auth.NewJWTIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	hasher, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	// Services
	inventoryService := service.NewInventoryService(store, cache, logger)
	bookService := service.NewBookService(store, inventoryService, logger)
	userService := service.NewUserService(store, roles, hasher, logger)
	authService, err := service.NewAuthService(store, hasher, tokens, inventoryService, logger)
	if err != nil {
		return err
	}

	if cfg.Bootstrap.AdminPassword != "" {
		if err := userService.EnsureAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
			return fmt.Errorf("bootstrapping admin: %w", err)
		}
	}

	errCh := make(chan error, 2)

	// gRPC server
	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(
			handler.UnaryAuthInterceptor(authService, roles, handler.InventoryMethodPermissions, logger),
		))
		handler.RegisterInventoryServer(grpcServer, handler.NewGRPCHandler(inventoryService, roles, logger))
		healthServer := health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)

		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.Server.GRPCAddr, err)
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	// HTTP server
	httpHandler := handler.NewHTTPHandler(bookService, userService, authService, inventoryService, roles, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpHandler.Routes(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("server failed, shutting down", "error", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")

	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		logger.Info("gRPC server stopped")
	}

	return runErr
}
