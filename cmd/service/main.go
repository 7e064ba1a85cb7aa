package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/config"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/database"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/logger"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/migrate"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/notify"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/observability"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/retention"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/service"
	gtransport "github.com/shawon2210/Online24Pharmacy-sub001/internal/transport/grpc"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()
	cfg := config.Load(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracingSDK(ctx, observability.TracingConfig{
		Endpoint: cfg.Otel.Endpoint,
		Insecure: true,
	})
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}

	db := openDB(cfg, log)
	defer database.CloseDB(db, log)

	// на SQLite отдельной команды миграции обычно нет
	if database.IsSQLite(db) {
		if err := migrate.MigrateDB(ctx, db, log, migrate.DefaultMigrateOptions()); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
	}

	repos := repository.New(db)
	bus := events.NewSyncBus(log.Named("events"))
	outbox := notify.NewOutbox(repos.Notifications)
	// реакции подписываются на шину при сборке движка
	service.NewEngine(repos, bus, outbox, log, service.EngineOptions{AdminUserIDs: cfg.Admins})

	pub := newPublisher(cfg, log)
	defer func() {
		if err := pub.Close(); err != nil {
			log.Error("publisher close failed", zap.Error(err))
		}
	}()
	relay := notify.NewRelay(repos.Notifications, pub, log.Named("relay"), notify.WithInterval(cfg.Notify.RelayInterval))
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(ctx)
	}()

	scheduler := retention.NewScheduler(
		retention.NewService(repos.Audit, cfg.Retention.PrescriptionAudit, log.Named("retention")),
		24*time.Hour, log.Named("retention"))
	scheduler.Start(ctx)

	lis, err := net.Listen("tcp", cfg.Port)
	if err != nil {
		log.Fatal("failed to listen", zap.Error(err))
	}
	grpcServer, healthSrv := gtransport.NewServer(log.Named("grpc"))
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		log.Info("Starting gRPC server", zap.String("addr", cfg.Port))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	healthSrv.Shutdown()
	grpcServer.GracefulStop()
	scheduler.Stop()
	<-relayDone

	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(tctx); err != nil {
		log.Error("tracing shutdown failed", zap.Error(err))
	}
	log.Info("Service stopped gracefully")
}

func openDB(cfg *config.Config, log *zap.Logger) *gorm.DB {
	if cfg.DB.Driver == config.DriverSQLite {
		db, err := database.ConnectSQLite(cfg.DB.Path, log)
		if err != nil {
			log.Fatal("failed to open sqlite", zap.Error(err))
		}
		return db
	}
	return database.ConnectDB(&cfg.DB.Config, log)
}

func newPublisher(cfg *config.Config, log *zap.Logger) notify.Publisher {
	switch cfg.Notify.Backend {
	case config.BackendKafka:
		log.Info("notifications go to kafka",
			zap.Strings("brokers", cfg.Notify.KafkaBrokers),
			zap.String("topic", cfg.Notify.KafkaTopic))
		return notify.NewKafkaPublisher(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
	case config.BackendRedis:
		log.Info("notifications go to redis stream",
			zap.String("addr", cfg.Notify.Redis.Addr),
			zap.String("stream", cfg.Notify.Stream))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Notify.Redis.Addr,
			Password: cfg.Notify.Redis.Password,
			DB:       cfg.Notify.Redis.DB,
		})
		return notify.NewRedisStreamPublisher(client, cfg.Notify.Stream)
	default:
		return notify.NewLogPublisher(log.Named("notify"))
	}
}
