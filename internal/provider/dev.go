package provider

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
)

// LogSender — sender для локальной разработки: пишет сообщение в лог
// вместо отправки. Используется, когда у провайдера нет учётных данных.
type LogSender struct {
	name   string
	logger *slog.Logger
}

// NewLogSender создаёт LogSender.
func NewLogSender(name string, logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{name: name, logger: logger.With("provider", name, "mode", "dev")}
}

func (s *LogSender) Send(ctx context.Context, job *domain.DeliveryJob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := "dev-" + uuid.NewString()
	s.logger.Info("message simulated",
		"request_id", job.RequestID,
		"channel", job.Channel,
		"recipients", len(job.Recipients),
		"subject", job.Subject,
		"message_id", id,
	)
	return id, nil
}
