package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/provider"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Исходы для метрики relay_deliveries_total.
const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
	outcomeInvalid   = "invalid"
	outcomeDeferred  = "deferred"
)

// Handle обрабатывает одно сообщение очереди канала.
//
//	RECEIVED → parse/validate → [invalid: RejectDiscard]
//	         → marker?        → [есть: Ack]
//	         → breaker?       → [открыт: пауза, RejectRequeue]
//	         → send с повторами
//	         → DELIVERED: маркер, OnSuccess, отчёт, Ack
//	         → FAILED:    OnFailure (постоянная ошибка: OnSuccess), отчёт,
//	                      RejectDiscard (→ failed.queue)
//	         → остановка: Release, RejectRequeue
func (w *Worker) Handle(ctx context.Context, d *mq.Delivery) mq.Outcome {
	job, err := w.decode(d)
	if err != nil {
		w.logger.Error("rejecting invalid job",
			"message_id", d.MessageID,
			"error", err,
		)
		w.count(outcomeInvalid)
		return mq.RejectDiscard
	}

	logger := telemetry.WithRequestID(w.logger, job.RequestID)

	// 1. Идемпотентность
	processed, err := w.markers.IsProcessed(ctx, w.channel, job.RequestID)
	if err != nil {
		logger.Warn("marker check failed, deferring", "error", err)
		w.count(outcomeDeferred)
		w.pause(ctx)
		return mq.RejectRequeue
	}
	if processed {
		logger.Info("job already processed, skipping")
		w.count(outcomeSkipped)
		return mq.Ack
	}

	// 2. Breaker провайдера
	if !w.breaker.CanExecute(w.provider) {
		logger.Warn("provider unavailable, requeueing",
			"provider", w.provider,
			"pause", w.breakerPause,
		)
		w.count(outcomeDeferred)
		w.pause(ctx)
		return mq.RejectRequeue
	}

	// 3. Отправка
	messageID, attempts, sendErr := w.sendWithRetry(ctx, job)

	if sendErr != nil && ctx.Err() != nil {
		// Остановка воркера посреди повторов: задание вернётся в очередь
		// и не считается провалом провайдера.
		logger.Warn("delivery interrupted, requeueing", "attempts", attempts, "error", sendErr)
		w.breaker.Release(w.provider)
		w.count(outcomeDeferred)
		return mq.RejectRequeue
	}

	if sendErr == nil {
		return w.onDelivered(ctx, job, messageID, attempts)
	}
	return w.onFailed(ctx, job, attempts, sendErr)
}

// decode разбирает и валидирует задание.
func (w *Worker) decode(d *mq.Delivery) (*domain.DeliveryJob, error) {
	var job domain.DeliveryJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if job.Channel == "" {
		job.Channel = w.channel
	}
	if job.Channel != w.channel {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrChannelMismatch, job.Channel, w.channel)
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

func (w *Worker) onDelivered(ctx context.Context, job *domain.DeliveryJob, messageID string, attempts int) mq.Outcome {
	logger := telemetry.WithRequestID(w.logger, job.RequestID)

	if err := w.markers.MarkProcessed(ctx, w.channel, job.RequestID, domain.StatusDelivered, messageID); err != nil {
		// Доставка уже произошла: ack всё равно, повтор даст дубликат
		logger.Error("failed to write processed marker", "error", err)
	}

	w.breaker.OnSuccess(w.provider)

	w.report(ctx, domain.StatusRecord{
		NotificationID: job.RequestID,
		Channel:        w.channel,
		Status:         domain.StatusDelivered,
		Timestamp:      time.Now().UTC(),
	})

	logger.Info("job delivered",
		"attempts", attempts,
		"provider_message_id", messageID,
	)
	w.count(outcomeDelivered)
	return mq.Ack
}

func (w *Worker) onFailed(ctx context.Context, job *domain.DeliveryJob, attempts int, sendErr error) mq.Outcome {
	logger := telemetry.WithRequestID(w.logger, job.RequestID)

	// Окончательный отказ по конкретному сообщению значит, что провайдер
	// ответил: для breaker это успешный вызов.
	if provider.IsPermanent(sendErr) {
		w.breaker.OnSuccess(w.provider)
	} else {
		w.breaker.OnFailure(w.provider)
	}

	err := fmt.Errorf("%w after %d attempts: %v", domain.ErrDeliveryExhausted, attempts, sendErr)

	w.report(ctx, domain.StatusRecord{
		NotificationID: job.RequestID,
		Channel:        w.channel,
		Status:         domain.StatusFailed,
		Timestamp:      time.Now().UTC(),
		Error:          err.Error(),
	})

	logger.Error("job failed, sending to dead-letter",
		"attempts", attempts,
		"permanent", provider.IsPermanent(sendErr),
		"error", sendErr,
	)
	w.count(outcomeFailed)
	return mq.RejectDiscard
}

// sendWithRetry отправляет задание: первая попытка и до maxRetries повторов.
// Задержка перед повтором n (с 1): baseDelay * 2^(n-1).
// Постоянные ошибки провайдера не повторяются.
func (w *Worker) sendWithRetry(ctx context.Context, job *domain.DeliveryJob) (string, int, error) {
	var lastErr error

	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			delay := w.backoff(attempt)

			telemetry.WithRequestID(w.logger, job.RequestID).Debug("retrying send",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)

			// Ждём с учётом context
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", attempt, errors.Join(ctx.Err(), lastErr)
			}
		}

		id, err := w.sendOnce(ctx, job)
		if err == nil {
			return id, attempt + 1, nil
		}
		lastErr = err

		if provider.IsPermanent(err) || ctx.Err() != nil {
			return "", attempt + 1, err
		}
	}

	return "", w.maxRetries + 1, lastErr
}

func (w *Worker) sendOnce(ctx context.Context, job *domain.DeliveryJob) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	telemetry.DeliveryAttempts.WithLabelValues(string(w.channel)).Inc()
	return w.sender.Send(ctx, job)
}

// backoff возвращает задержку перед повтором n (n >= 1).
func (w *Worker) backoff(n int) time.Duration {
	return w.baseDelay * time.Duration(1<<(n-1))
}

// pause ждёт breakerPause или отмены ctx.
func (w *Worker) pause(ctx context.Context) {
	t := time.NewTimer(w.breakerPause)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// report отправляет отчёт асинхронно, не блокируя ack.
func (w *Worker) report(ctx context.Context, rec domain.StatusRecord) {
	if w.reporter == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)

	w.reports.Add(1)
	go func() {
		defer w.reports.Done()
		w.reporter.Report(ctx, rec)
	}()
}

func (w *Worker) count(outcome string) {
	telemetry.Deliveries.WithLabelValues(string(w.channel), outcome).Inc()
}
