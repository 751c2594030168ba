package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/inventory-reconciler/internal/adapter/handler"
	"github.com/rl1809/inventory-reconciler/internal/adapter/storage"
	"github.com/rl1809/inventory-reconciler/internal/adapter/store"
	"github.com/rl1809/inventory-reconciler/internal/config"
	"github.com/rl1809/inventory-reconciler/internal/core/service"
	"github.com/rl1809/inventory-reconciler/internal/logging"
	"github.com/rl1809/inventory-reconciler/internal/port"
	"github.com/rl1809/inventory-reconciler/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Order/Warehouse backend
	var backend port.Store
	if cfg.StoreBaseURL != "" {
		backend = store.NewRESTClient(cfg.StoreBaseURL, cfg.StoreTimeout, logger)
		logger.Info("using REST store", zap.String("base_url", cfg.StoreBaseURL))
	} else {
		backend = store.NewMemoryStore()
		logger.Warn("STORE_BASE_URL not set, using in-memory store")
	}

	// Transfer journal
	var (
		journal port.JournalRepository
		db      *sql.DB
	)
	if cfg.MySQLDSN != "" {
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			logger.Fatal("failed to connect mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("failed to ping mysql", zap.Error(err))
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to create journal schema", zap.Error(err))
		}
		journal = mysqlAdapter
		logger.Info("connected to mysql")
	} else {
		memJournal, err := storage.NewMemoryJournal()
		if err != nil {
			logger.Fatal("failed to create memory journal", zap.Error(err))
		}
		journal = memJournal
	}

	// Locks, idempotency keys and sessions
	var (
		cache    port.CacheRepository
		sessions port.SessionRepository
		rdb      *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		redisAdapter := storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL, cfg.SessionTTL)
		cache, sessions = redisAdapter, redisAdapter
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		memCache := storage.NewMemoryCache(cfg.IdempotencyTTL, cfg.SessionTTL)
		cache, sessions = memCache, memCache
	}

	// Initialize services
	sessionService := service.NewSessionService(sessions, backend, logger)
	warehouseService := service.NewWarehouseService(backend, sessionService, logger)
	reconciliationOptions := service.ReconciliationOptions{
		LockTTL:   cfg.LockTTL,
		LockWait:  cfg.LockWait,
		QueueSize: cfg.QueueSize,
	}
	orderService := service.NewOrderService(backend, cache, sessionService, logger, reconciliationOptions)
	reconciliationService := service.NewReconciliationService(backend, cache, journal, sessionService, logger, reconciliationOptions)

	// Start worker pool
	pool := worker.StartJournalPool(cfg.WorkerCount, reconciliationService.GetJournalQueue(), journal, logger)
	logger.Info("started journal workers", zap.Int("count", cfg.WorkerCount))

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterReconciliationServer(grpcServer, handler.NewGRPCHandler(reconciliationService, logger))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(sessionService, warehouseService, orderService, reconciliationService, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	// Stop gRPC server
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close journal queue and wait for workers
	reconciliationService.Close()
	pool.Wait()
	logger.Info("workers stopped")

	// Close connections
	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logger.Info("connections closed")
}
