// Relay API — HTTP-шлюз приёма уведомлений.
//
// Принимает запросы на отправку, разрешает пользователя и шаблон
// во внешних сервисах, публикует задания доставки в RabbitMQ и
// хранит статусы в Redis. При DEADLETTERS_ENABLED даёт доступ
// к архиву dead-letter в PostgreSQL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relay/internal/api"
	"github.com/shaiso/Relay/internal/breaker"
	"github.com/shaiso/Relay/internal/cache"
	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/deadletter"
	"github.com/shaiso/Relay/internal/health"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/status"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/upstream"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load[config.API]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting relay-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Redis: статусы и кэш lookup-ов
	rdb, err := cache.Connect(ctx, cfg.Redis.URL, cfg.Redis.ConnectTimeout)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	store := cache.NewRedisStore(rdb)
	logger.Info("connected to redis")

	// RabbitMQ
	conn, err := mq.NewConnection(cfg.Broker.URL, "relay-api", logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	conn.OnReconnect(mq.SetupTopology)
	publisher := mq.NewPublisher(conn, logger)

	// Внешние сервисы за общим реестром breaker-ов
	breakers := breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		Logger:           logger,
	})
	users := upstream.NewUserClient(newUpstream(cfg, upstream.ServiceUser, cfg.Upstream.UserServiceURL, breakers, logger), store, cfg.Upstream.CacheTTL)
	templates := upstream.NewTemplateClient(newUpstream(cfg, upstream.ServiceTemplate, cfg.Upstream.TemplateServiceURL, breakers, logger), store, cfg.Upstream.CacheTTL)

	tracker := status.NewTracker(store, cfg.StatusTTL)

	orch := orchestrator.New(orchestrator.Config{
		Publisher: publisher,
		Users:     users,
		Templates: templates,
		Status:    tracker,
		Logger:    logger,
	})

	probes := map[string]health.Probe{
		"user_service":     users.Health,
		"template_service": templates.Health,
		"redis":            store.Ping,
		"rabbitmq":         conn.Ping,
	}

	handlerCfg := api.Config{
		Dispatcher:   orch,
		Statuses:     tracker,
		Auth:         api.NewAuthenticator(cfg.JWTSecret, logger),
		StatusSecret: cfg.StatusSecret,
		Logger:       logger,
	}

	// Архив dead-letter опционален: без него API работает, а /dead-letters отвечает 503
	if cfg.DeadLettersEnabled {
		pool, err := repo.NewPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("connected to database")

		dlRepo := repo.NewDeadLetterRepo(pool)
		handlerCfg.DeadLetters = dlRepo
		handlerCfg.Replayer = deadletter.NewReplayer(deadletter.ReplayerConfig{
			Source:    dlRepo,
			Publisher: publisher,
			Rate:      cfg.ReplayRate,
			Burst:     cfg.ReplayBurst,
			Logger:    logger,
		})
		probes["postgres"] = pool.Ping
	}

	handlerCfg.Health = health.New(health.Config{
		Probes:      probes,
		Concurrency: cfg.HealthConcurrency,
		Logger:      logger,
	})
	handler := api.NewHandler(handlerCfg)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty, dead-letter endpoints are disabled")
	}
	if cfg.StatusSecret == "" {
		logger.Warn("STATUS_SECRET is empty, status callbacks will be rejected")
	}

	mux := http.NewServeMux()

	// Liveness и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

func newUpstream(cfg config.API, service, baseURL string, gate upstream.Gate, logger *slog.Logger) *upstream.Client {
	return upstream.New(upstream.Config{
		Service:        service,
		BaseURL:        baseURL,
		Breaker:        gate,
		RequestTimeout: cfg.Upstream.RequestTimeout,
		CallTimeout:    cfg.Upstream.CallTimeout,
		MaxRetries:     cfg.Upstream.MaxRetries,
		RetryDelay:     cfg.Upstream.RetryDelay,
		Logger:         logger,
	})
}
