package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Default configuration values.
const (
	defaultReplayRate  = 5
	defaultReplayBurst = 1
)

// Source читает и обновляет архив. Реализуется *repo.DeadLetterRepo.
type Source interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, error)
	MarkReplayed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Publisher публикует сырое тело задания. Реализуется *mq.Publisher.
type Publisher interface {
	PublishRaw(ctx context.Context, channel domain.Channel, messageID string, body []byte, priority uint8) error
}

// Replayer переотправляет архивные задания с ограничением скорости.
type Replayer struct {
	source    Source
	publisher Publisher
	limiter   *rate.Limiter
	now       func() time.Time
	logger    *slog.Logger
}

// ReplayerConfig — конфигурация Replayer.
type ReplayerConfig struct {
	Source    Source
	Publisher Publisher

	Rate  float64 // переотправок в секунду (default: 5)
	Burst int     // default: 1

	Now    func() time.Time
	Logger *slog.Logger
}

// NewReplayer создаёт новый Replayer.
func NewReplayer(cfg ReplayerConfig) *Replayer {
	if cfg.Rate <= 0 {
		cfg.Rate = defaultReplayRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultReplayBurst
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Replayer{
		source:    cfg.Source,
		publisher: cfg.Publisher,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		now:       cfg.Now,
		logger:    cfg.Logger.With("component", "replayer"),
	}
}

// Replay публикует исходное задание в очередь его канала
// и отмечает запись как переотправленную.
func (r *Replayer) Replay(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: replay throttled: %v", domain.ErrServiceUnavailable, err)
	}

	dl, err := r.source.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !dl.Channel.Valid() {
		return nil, ErrNotReplayable
	}

	priority := domain.DefaultPriority
	var job domain.DeliveryJob
	if err := json.Unmarshal(dl.Payload, &job); err == nil {
		priority = job.Priority
	}

	if err := r.publisher.PublishRaw(ctx, dl.Channel, dl.RequestID, dl.Payload, uint8(min(max(priority, domain.MinPriority), domain.MaxPriority))); err != nil {
		return nil, fmt.Errorf("%w: republish: %v", domain.ErrServiceUnavailable, err)
	}
	telemetry.DeadLetters.WithLabelValues("replayed").Inc()

	at := r.now().UTC()
	if err := r.source.MarkReplayed(ctx, dl.ID, at); err != nil {
		// Задание уже в очереди: ответ всё равно успешный
		r.logger.Warn("failed to mark dead letter replayed", "dead_letter_id", dl.ID, "error", err)
	}
	dl.ReplayedAt = &at

	r.logger.Info("dead letter replayed",
		"dead_letter_id", dl.ID,
		"request_id", dl.RequestID,
		"channel", dl.Channel,
	)
	return dl, nil
}
