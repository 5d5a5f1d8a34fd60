package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/provider"
)

// Default configuration values.
const (
	defaultMaxRetries   = 3
	defaultBaseDelay    = time.Second
	defaultSendTimeout  = 7 * time.Second
	defaultBreakerPause = 5 * time.Second
	defaultPrefetch     = 1
)

// Breaker — circuit breaker провайдера. Реализуется *breaker.Registry.
type Breaker interface {
	CanExecute(service string) bool
	OnSuccess(service string)
	OnFailure(service string)
	Release(service string)
}

// Markers — маркеры идемпотентности. Реализуется *cache.Markers.
type Markers interface {
	IsProcessed(ctx context.Context, channel domain.Channel, requestID string) (bool, error)
	MarkProcessed(ctx context.Context, channel domain.Channel, requestID string, status domain.DeliveryStatus, detail string) error
}

// Reporter — отчёт о статусе доставки. Реализуется *status.Reporter.
type Reporter interface {
	Report(ctx context.Context, rec domain.StatusRecord)
}

// Worker доставляет задания одного канала.
//
// Worker:
//   - Потребляет очередь своего канала (prefetch 1)
//   - Пропускает задания, для которых уже есть маркер обработки
//   - Не обращается к провайдеру, пока его breaker открыт
//   - Повторяет отправку с exponential backoff
//   - Отчитывается о результате в relay-api
//
// Workers масштабируются процессами: несколько экземпляров на одну очередь.
type Worker struct {
	channel  domain.Channel
	provider string

	sender   provider.Sender
	breaker  Breaker
	markers  Markers
	reporter Reporter

	// MQ
	conn     *mq.Connection
	consumer *mq.Consumer
	prefetch int

	// Retry policy
	maxRetries   int
	baseDelay    time.Duration
	sendTimeout  time.Duration
	breakerPause time.Duration

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	reports    sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Channel domain.Channel

	// ProviderName — имя провайдера для breaker (default: provider.NameFor(Channel)).
	ProviderName string

	Sender   provider.Sender
	Breaker  Breaker
	Markers  Markers
	Reporter Reporter // опционально

	// MQ (нужен только для Start)
	Conn     *mq.Connection
	Prefetch int // default: 1

	// Retry policy
	MaxRetries   int           // повторов после первой попытки (0 — без повторов, <0 — 3)
	BaseDelay    time.Duration // задержка перед повтором n: BaseDelay * 2^(n-1) (default: 1s)
	SendTimeout  time.Duration // таймаут одной отправки (default: 7s)
	BreakerPause time.Duration // пауза перед requeue при открытом breaker (default: 5s)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	if cfg.ProviderName == "" {
		cfg.ProviderName = provider.NameFor(cfg.Channel)
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = defaultPrefetch
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.BreakerPause <= 0 {
		cfg.BreakerPause = defaultBreakerPause
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Worker{
		channel:      cfg.Channel,
		provider:     cfg.ProviderName,
		sender:       cfg.Sender,
		breaker:      cfg.Breaker,
		markers:      cfg.Markers,
		reporter:     cfg.Reporter,
		conn:         cfg.Conn,
		prefetch:     cfg.Prefetch,
		maxRetries:   cfg.MaxRetries,
		baseDelay:    cfg.BaseDelay,
		sendTimeout:  cfg.SendTimeout,
		breakerPause: cfg.BreakerPause,
		logger:       cfg.Logger.With("channel", cfg.Channel),
	}
}

// Start подписывается на очередь канала. Не блокирует.
func (w *Worker) Start(ctx context.Context) error {
	queue, err := mq.QueueFor(w.channel)
	if err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	if w.conn == nil {
		return fmt.Errorf("start worker: %w", mq.ErrNoChannel)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"queue", queue,
		"provider", w.provider,
		"max_retries", w.maxRetries,
		"base_delay", w.baseDelay,
	)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    queue,
		Handler:  w.Handle,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и дожидается отправки отчётов.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()
	w.reports.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
