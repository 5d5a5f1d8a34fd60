// Relay Worker — воркер доставки одного канала.
//
// Канал задаётся CHANNEL (email или push). Воркер читает задания
// из очереди канала, отправляет их через провайдера (Postmark или FCM)
// и сообщает итоговый статус шлюзу. Без учётных данных провайдера
// работает в dev-режиме и пишет сообщения в лог.
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

	"github.com/shaiso/Relay/internal/breaker"
	"github.com/shaiso/Relay/internal/cache"
	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/provider"
	"github.com/shaiso/Relay/internal/status"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/worker"
)

func main() {
	cfg, err := config.Load[config.Worker]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	channel := cfg.ChannelName()
	logger := telemetry.WithChannel(telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format), string(channel))
	logger.Info("starting relay-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sender, err := newSender(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create provider", "error", err)
		os.Exit(1)
	}

	// Redis: маркеры идемпотентности
	rdb, err := cache.Connect(ctx, cfg.Redis.URL, cfg.Redis.ConnectTimeout)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	logger.Info("connected to redis")

	// RabbitMQ
	conn, err := mq.NewConnection(cfg.Broker.URL, "relay-worker-"+string(channel), logger)
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

	if cfg.StatusSecret == "" {
		logger.Warn("STATUS_SECRET is empty, status reports will be rejected by the gateway")
	}

	w := worker.New(worker.Config{
		Channel: channel,
		Sender:  sender,
		Breaker: breaker.New(breaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			ResetTimeout:     cfg.Breaker.ResetTimeout,
			Logger:           logger,
		}),
		Markers: cache.NewMarkers(cache.NewRedisStore(rdb), cfg.Delivery.MarkerTTL),
		Reporter: status.NewReporter(status.ReporterConfig{
			GatewayURL: cfg.GatewayURL,
			Secret:     cfg.StatusSecret,
			Timeout:    cfg.ReportTimeout,
			Logger:     logger,
		}),
		Conn:         conn,
		Prefetch:     cfg.Delivery.Prefetch,
		MaxRetries:   cfg.Delivery.MaxRetries,
		BaseDelay:    cfg.Delivery.BaseDelay,
		SendTimeout:  cfg.Delivery.SendTimeout,
		BreakerPause: cfg.Delivery.BreakerPause,
		Logger:       logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Health и metrics endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if w.IsStopped() || !conn.IsConnected() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(rw, "unavailable")
			return
		}
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, "ok")
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

	w.Stop()

	logger.Info("stopped")
}

// newSender выбирает провайдера по каналу воркера.
func newSender(ctx context.Context, cfg config.Worker, logger *slog.Logger) (provider.Sender, error) {
	switch cfg.ChannelName() {
	case domain.ChannelEmail:
		if cfg.Postmark.ServerToken == "" {
			logger.Warn("POSTMARK_SERVER_TOKEN is empty, emails will be logged only")
			return provider.NewLogSender(provider.NameEmail, logger), nil
		}
		return provider.NewPostmarkSender(provider.PostmarkConfig{
			ServerToken:  cfg.Postmark.ServerToken,
			AccountToken: cfg.Postmark.AccountToken,
			From:         cfg.Postmark.From,
			ReplyTo:      cfg.Postmark.ReplyTo,
		})

	case domain.ChannelPush:
		if cfg.FCM.CredentialsFile == "" {
			logger.Warn("FCM_CREDENTIALS_FILE is empty, pushes will be logged only")
			return provider.NewLogSender(provider.NamePush, logger), nil
		}
		return provider.NewFCMSenderFromFile(ctx, cfg.FCM.CredentialsFile, provider.FCMConfig{
			ProjectID: cfg.FCM.ProjectID,
			Endpoint:  cfg.FCM.Endpoint,
			Logger:    logger,
		})

	default:
		return nil, fmt.Errorf("unsupported channel %q", cfg.Channel)
	}
}
