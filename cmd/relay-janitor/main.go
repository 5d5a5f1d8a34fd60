// Relay Janitor — обслуживание dead-letter очереди.
//
// Перекладывает сообщения из failed.queue в архив PostgreSQL
// и по расписанию удаляет записи старше DEADLETTER_RETENTION.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/deadletter"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

func main() {
	cfg, err := config.Load[config.Janitor]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting relay-janitor")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := repo.Migrate(ctx, pool, logger); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}
	dlRepo := repo.NewDeadLetterRepo(pool)

	// Подключаемся к RabbitMQ
	conn, err := mq.NewConnection(cfg.Broker.URL, "relay-janitor", logger)
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

	archiver := deadletter.NewArchiver(deadletter.ArchiverConfig{
		Archive: dlRepo,
		Conn:    conn,
		Logger:  logger,
	})
	if err := archiver.Start(ctx); err != nil {
		logger.Error("failed to start archiver", "error", err)
		os.Exit(1)
	}

	purger, err := deadletter.NewPurger(deadletter.PurgerConfig{
		Pruner:    dlRepo,
		Retention: cfg.Retention,
		Schedule:  cfg.PurgeCron,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create purger", "error", err)
		os.Exit(1)
	}
	purger.Start(ctx)

	// Health и metrics endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil || !conn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.MetricsPort
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	purger.Stop()
	archiver.Stop()

	logger.Info("stopped")
}
