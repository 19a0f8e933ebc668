package thomas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	// Регистрация swagger-документации для /docs.
	_ "github.com/magabrotheeeer/thomas-api/docs"
	"github.com/magabrotheeeer/thomas-api/internal/cache"
	"github.com/magabrotheeeer/thomas-api/internal/config"
	"github.com/magabrotheeeer/thomas-api/internal/events"
	"github.com/magabrotheeeer/thomas-api/internal/lib/jwt"
	"github.com/magabrotheeeer/thomas-api/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/metrics"
	"github.com/magabrotheeeer/thomas-api/internal/migrations"
	"github.com/magabrotheeeer/thomas-api/internal/models"
	ledgerservice "github.com/magabrotheeeer/thomas-api/internal/services/ledger"
	schedulerservice "github.com/magabrotheeeer/thomas-api/internal/services/scheduler"
	subservice "github.com/magabrotheeeer/thomas-api/internal/services/subscription"
	usersservice "github.com/magabrotheeeer/thomas-api/internal/services/users"
	"github.com/magabrotheeeer/thomas-api/internal/storage/memory"
	"github.com/magabrotheeeer/thomas-api/internal/storage/mongo"
	"github.com/magabrotheeeer/thomas-api/internal/storage/postgres"
)

// Store - хранилище, которое нужно всем сервисам сразу.
type Store interface {
	FindUser(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (bool, error)
	FindSubscriptions(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error)
	InsertSubscription(ctx context.Context, sub *models.Subscription) error
	ActivateSubscription(ctx context.Context, filter models.SubscriptionFilter, userID int64, premium models.Premium) error
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
	Close(ctx context.Context) error
}

// Cache - теневая копия пользователей.
type Cache interface {
	GetUser(ctx context.Context, id int64) (*models.User, bool, error)
	SetUser(ctx context.Context, u *models.User) error
	Invalidate(ctx context.Context, id int64) error
	Close() error
}

// App - собранное приложение.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	store     Store
	cache     Cache
	amqpConn  *amqp.Connection
	scheduler *schedulerservice.SchedulerService
}

// New подключает зависимости по конфигу и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.thomas.New"

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var userCache Cache = cache.Nop{}
	if cfg.AddressRedis != "" {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		userCache = redisCache
	} else {
		logger.Warn("redis address is empty, user cache disabled")
	}

	var publisher events.Publisher = events.Nop{}
	var amqpConn *amqp.Connection
	if cfg.RabbitMQURL != "" {
		amqpConn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			_ = store.Close(ctx)
			_ = userCache.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.SetupChannel(amqpConn, cfg.Exchange, rabbitmq.GetEventQueues())
		if err != nil {
			_ = amqpConn.Close()
			_ = store.Close(ctx)
			_ = userCache.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		publisher = rabbitmq.NewPublisher(ch, cfg.Exchange)
	} else {
		logger.Warn("rabbitmq url is empty, domain events disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	emitter := events.NewEmitter(publisher, logger)

	services := Services{
		Ledger:       ledgerservice.NewLedgerService(store, userCache, emitter, m, logger, cfg.XPPerVote),
		Subscription: subservice.NewSubscriptionService(store, userCache, emitter, m, logger),
		Users:        usersservice.NewUserService(store, userCache, logger),
		Identity:     jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, services, reg)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:    srv,
		logger:    logger,
		store:     store,
		cache:     userCache,
		amqpConn:  amqpConn,
		scheduler: schedulerservice.NewSchedulerService(store, m, logger, cfg.ExpirySweepInterval),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "mongo":
		warnWeakActivation(cfg, logger)
		s, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase, !cfg.NoTransactions)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.Run(s.DB, cfg.MigrationsPath); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		return s, nil
	case "memory":
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// warnWeakActivation предупреждает, что без транзакций привязка подписки и
// запись premium выполняются двумя отдельными записями.
func warnWeakActivation(cfg *config.Config, logger *slog.Logger) {
	if cfg.Driver != "mongo" || !cfg.NoTransactions {
		return
	}
	logger.Warn("mongo transactions are disabled: a crash during activation can leave a subscription bound without premium",
		slog.String("database", cfg.MongoDatabase),
	)
}

// Run запускает HTTP-сервер и проход по истёкшим подпискам и блокируется до
// отмены ctx или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.scheduler.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	stopSweep()
	a.close()
	return err
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.store.Close(ctx); err != nil {
		a.logger.Error("failed to close store", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
}
