package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// SecretHeader — заголовок с общим секретом status callback.
const SecretHeader = "X-Status-Secret"

// DefaultReportTimeout — таймаут одного отчёта.
const DefaultReportTimeout = 4 * time.Second

// ReporterConfig — конфигурация Reporter.
type ReporterConfig struct {
	// GatewayURL — адрес relay-api.
	GatewayURL string

	// Secret — значение X-Status-Secret, пусто = без заголовка.
	Secret string

	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Reporter отправляет итог доставки обратно в relay-api.
//
// Отчёт best-effort: ошибки логируются и не влияют на обработку сообщения.
type Reporter struct {
	baseURL string
	secret  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewReporter создаёт Reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultReportTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Reporter{
		baseURL: strings.TrimRight(cfg.GatewayURL, "/"),
		secret:  cfg.Secret,
		timeout: cfg.Timeout,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
	}
}

// CallbackPayload — тело POST /api/v1/notifications/{channel}/status.
type CallbackPayload struct {
	NotificationID string                `json:"notification_id"`
	Status         domain.DeliveryStatus `json:"status"`
	Timestamp      time.Time             `json:"timestamp"`
	Error          string                `json:"error,omitempty"`
}

// Report отправляет статус. Ошибки только логируются.
func (r *Reporter) Report(ctx context.Context, rec domain.StatusRecord) {
	if err := r.send(ctx, rec); err != nil {
		r.logger.Warn("status report failed",
			"request_id", rec.NotificationID,
			"channel", rec.Channel,
			"status", rec.Status,
			"error", err,
		)
		return
	}

	r.logger.Debug("status reported",
		"request_id", rec.NotificationID,
		"channel", rec.Channel,
		"status", rec.Status,
	)
}

func (r *Reporter) send(ctx context.Context, rec domain.StatusRecord) error {
	if r.baseURL == "" {
		return errors.New("gateway url is not configured")
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(CallbackPayload{
		NotificationID: rec.NotificationID,
		Status:         rec.Status,
		Timestamp:      rec.Timestamp,
		Error:          rec.Error,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/v1/notifications/%s/status", r.baseURL, rec.Channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.secret != "" {
		req.Header.Set(SecretHeader, r.secret)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway responded %d", resp.StatusCode)
	}
	return nil
}
