package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/telemetry"
)

const defaultRetryPause = 5 * time.Second

// Archive сохраняет dead letter. Реализуется *repo.DeadLetterRepo.
type Archive interface {
	Create(ctx context.Context, dl *domain.DeadLetter) error
}

// Archiver переносит сообщения из failed.queue в архив.
type Archiver struct {
	archive    Archive
	conn       *mq.Connection
	consumer   *mq.Consumer
	retryPause time.Duration
	now        func() time.Time
	logger     *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ArchiverConfig — конфигурация Archiver.
type ArchiverConfig struct {
	Archive Archive
	Conn    *mq.Connection // нужен только для Start

	// RetryPause — пауза перед requeue, если архив недоступен (default: 5s).
	RetryPause time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// NewArchiver создаёт новый Archiver.
func NewArchiver(cfg ArchiverConfig) *Archiver {
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = defaultRetryPause
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Archiver{
		archive:    cfg.Archive,
		conn:       cfg.Conn,
		retryPause: cfg.RetryPause,
		now:        cfg.Now,
		logger:     cfg.Logger.With("component", "archiver"),
	}
}

// Start подписывается на failed.queue. Не блокирует.
func (a *Archiver) Start(ctx context.Context) error {
	if a.conn == nil {
		return fmt.Errorf("start archiver: %w", mq.ErrNoChannel)
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel

	a.consumer = mq.NewConsumer(a.conn, a.logger, mq.ConsumerConfig{
		Queue:    mq.QueueFailed,
		Handler:  a.Handle,
		Prefetch: 10,
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("consumer error", "error", err)
		}
	}()

	a.logger.Info("archiver started", "queue", mq.QueueFailed)
	return nil
}

// Stop останавливает Archiver.
func (a *Archiver) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	if a.consumer != nil {
		a.consumer.Stop()
	}
	a.wg.Wait()
	a.logger.Info("archiver stopped")
}

// Handle архивирует одно сообщение failed.queue.
//
// Сообщение подтверждается после записи в архив. Если архив недоступен,
// сообщение возвращается в очередь после паузы.
func (a *Archiver) Handle(ctx context.Context, d *mq.Delivery) mq.Outcome {
	dl := a.letterFrom(d)
	logger := a.logger.With("dead_letter_id", dl.ID, "request_id", dl.RequestID, "channel", dl.Channel)

	err := a.archive.Create(ctx, dl)
	switch {
	case err == nil:
		telemetry.DeadLetters.WithLabelValues("archived").Inc()
		logger.Info("dead letter archived", "reason", dl.Reason)
		return mq.Ack

	case errors.Is(err, domain.ErrConflict):
		logger.Warn("dead letter already archived")
		return mq.Ack

	default:
		logger.Error("failed to archive dead letter, requeueing", "error", err)
		select {
		case <-time.After(a.retryPause):
		case <-ctx.Done():
		}
		return mq.RejectRequeue
	}
}

// letterFrom собирает запись архива. Тело, которое не разбирается как
// задание, сохраняется как есть: такие сообщения тоже нужно видеть.
func (a *Archiver) letterFrom(d *mq.Delivery) *domain.DeadLetter {
	dl := &domain.DeadLetter{
		ID:        uuid.New(),
		RequestID: d.MessageID,
		Reason:    "unknown",
		FailedAt:  a.now().UTC(),
	}

	if death, ok := d.Death(); ok {
		dl.Reason = death.Reason
		if ch, ok := mq.ChannelForQueue(mq.Queue(death.Queue)); ok {
			dl.Channel = ch
		}
	}

	var job domain.DeliveryJob
	if err := json.Unmarshal(d.Body, &job); err == nil {
		if job.RequestID != "" {
			dl.RequestID = job.RequestID
		}
		if job.Channel.Valid() {
			dl.Channel = job.Channel
		}
	}

	if json.Valid(d.Body) {
		dl.Payload = json.RawMessage(d.Body)
	} else {
		raw, _ := json.Marshal(string(d.Body))
		dl.Payload = raw
	}
	return dl
}
