package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/fairhold/escrow-arbitration-service/internal/adapters/cache"
	eventadapter "github.com/fairhold/escrow-arbitration-service/internal/adapters/events"
	grpcadapter "github.com/fairhold/escrow-arbitration-service/internal/adapters/grpc"
	httpadapter "github.com/fairhold/escrow-arbitration-service/internal/adapters/http"
	"github.com/fairhold/escrow-arbitration-service/internal/adapters/memory"
	"github.com/fairhold/escrow-arbitration-service/internal/adapters/postgres"
	"github.com/fairhold/escrow-arbitration-service/internal/application"
	"github.com/fairhold/escrow-arbitration-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	worker     *eventadapter.Worker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var closers []io.Closer

	deps := application.Dependencies{
		Config: application.Config{
			ServiceName:          cfg.ServiceID,
			OperatorIdentity:     cfg.OperatorIdentity,
			DisputeReplyWindow:   cfg.DisputeReplyWindow,
			IdempotencyTTL:       cfg.IdempotencyTTL,
			EventDedupTTL:        cfg.EventDedupTTL,
			ConsumerPollInterval: cfg.ConsumerPollInterval,
			OutboxFlushBatchSize: cfg.OutboxBatchSize,
		},
	}

	// Postgres is the production store; without DB_URL the runtime falls
	// back to the in-process store, which is enough for local runs.
	if cfg.DatabaseURL != "" {
		db, connErr := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if connErr != nil {
			return nil, connErr
		}
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return nil, dbErr
		}
		if migErr := postgres.RunMigrations(ctx, db); migErr != nil {
			_ = sqlDB.Close()
			return nil, migErr
		}
		repos := postgres.NewRepositories(db)
		deps.Escrows = repos.Escrows
		deps.Movements = repos.Movements
		deps.Projects = repos.Projects
		deps.Milestones = repos.Milestones
		deps.Disputes = repos.Disputes
		deps.Ratings = repos.Ratings
		deps.Fees = repos.Fees
		deps.Idempotency = repos.Idempotency
		deps.EventDedup = repos.EventDedup
		deps.Outbox = repos.Outbox
		closers = append(closers, sqlDB)
	} else {
		logger.WarnContext(ctx, "no database configured, using in-process store")
		repos := memory.NewRepositories()
		deps.Escrows = repos.Escrows
		deps.Movements = repos.Movements
		deps.Projects = repos.Projects
		deps.Milestones = repos.Milestones
		deps.Disputes = repos.Disputes
		deps.Ratings = repos.Ratings
		deps.Fees = repos.Fees
		deps.Idempotency = repos.Idempotency
		deps.EventDedup = repos.EventDedup
		deps.Outbox = repos.Outbox
	}

	deps.Registry = cache.NewStaticComponentRegistry(cfg.RegistryEntries)
	if cfg.RedisURL != "" {
		redisClient, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			return nil, redisErr
		}
		deps.FeeCache = cache.NewRedisFeeScheduleCache(redisClient, cfg.FeeCacheTTL)
		if len(cfg.RegistryEntries) == 0 {
			deps.Registry = cache.NewRedisComponentRegistry(redisClient)
		}
		closers = append(closers, redisClient)
	}

	deps.DLQ = eventadapter.NewLoggingDLQPublisher(logger)
	var consumer ports.EventConsumer = eventadapter.NewMemoryConsumer()
	if len(cfg.KafkaBrokers) > 0 {
		publisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, eventadapter.Topics{
			Domain:    cfg.KafkaTopicDomain,
			Analytics: cfg.KafkaTopicAnalytics,
			DLQ:       cfg.KafkaTopicDLQ,
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using in-process publishers", "error", pubErr)
		} else {
			deps.DomainEvents = publisher
			deps.Analytics = publisher
			deps.DLQ = publisher
			closers = append(closers, publisher)
		}

		kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, []string{cfg.KafkaTopicPayments})
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled", "error", conErr)
		} else {
			consumer = kafkaConsumer
			closers = append(closers, kafkaConsumer)
		}
	}
	if deps.DomainEvents == nil {
		deps.DomainEvents = eventadapter.NewMemoryDomainPublisher()
		deps.Analytics = eventadapter.NewMemoryAnalyticsPublisher()
	}

	service := application.NewService(deps)

	handler := httpadapter.NewHandler(service)
	router := httpadapter.NewRouter(handler, cfg.AuthJWTSecret)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewInternalServer(service))
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		for _, closer := range closers {
			_ = closer.Close()
		}
		return nil, err
	}

	worker := eventadapter.NewWorker(logger, consumer, service, cfg.ConsumerPollInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		worker:     worker,
		cleanupFn: func(_ context.Context) {
			for _, closer := range closers {
				_ = closer.Close()
			}
		},
	}, nil
}

func Build(ctx context.Context, configPath string) (*Runtime, error) {
	return NewRuntime(ctx, configPath)
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := r.worker.Run(ctx)
	r.cleanupFn(context.Background())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
