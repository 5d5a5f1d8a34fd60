package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/shaiso/Relay/internal/domain"
)

const (
	fcmScope           = "https://www.googleapis.com/auth/firebase.messaging"
	defaultFCMEndpoint = "https://fcm.googleapis.com"
)

// FCMConfig — конфигурация FCMSender.
type FCMConfig struct {
	// ProjectID — id проекта Firebase. Пусто = из файла учётных данных.
	ProjectID string

	// Endpoint — базовый URL API, пусто = fcm.googleapis.com.
	Endpoint string

	// TokenSource — источник OAuth2 токенов. Обязателен.
	TokenSource oauth2.TokenSource

	Logger *slog.Logger
}

// FCMSender отправляет push через Firebase Cloud Messaging HTTP v1.
//
// HTTP v1 не поддерживает multicast, поэтому на каждый токен устройства
// уходит отдельный запрос. Отправка успешна, если принят хотя бы один токен.
type FCMSender struct {
	client    *http.Client
	endpoint  string
	projectID string
	logger    *slog.Logger
}

// NewFCMSender создаёт FCMSender.
func NewFCMSender(ctx context.Context, cfg FCMConfig) (*FCMSender, error) {
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("%w: fcm token source is required", ErrNotConfigured)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: fcm project id is required", ErrNotConfigured)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultFCMEndpoint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &FCMSender{
		client:    oauth2.NewClient(ctx, cfg.TokenSource),
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		projectID: cfg.ProjectID,
		logger:    cfg.Logger.With("provider", NamePush),
	}, nil
}

// NewFCMSenderFromFile читает service account JSON и создаёт FCMSender.
func NewFCMSenderFromFile(ctx context.Context, path string, cfg FCMConfig) (*FCMSender, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fcm credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("parse fcm credentials: %w", err)
	}

	cfg.TokenSource = creds.TokenSource
	if cfg.ProjectID == "" {
		cfg.ProjectID = creds.ProjectID
	}
	return NewFCMSender(ctx, cfg)
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Name  string `json:"name"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Send отправляет push на все токены задания.
func (s *FCMSender) Send(ctx context.Context, job *domain.DeliveryJob) (string, error) {
	data := stringMap(job.Metadata)
	data["request_id"] = job.RequestID

	var (
		firstID   string
		sent      int
		transient []error
		invalid   []string
	)

	for _, token := range job.Recipients {
		id, err := s.sendOne(ctx, fcmMessage{
			Token:        token,
			Notification: fcmNotification{Title: job.Subject, Body: job.Body},
			Data:         data,
		})
		switch {
		case err == nil:
			sent++
			if firstID == "" {
				firstID = id
			}
		case IsPermanent(err):
			invalid = append(invalid, maskToken(token))
		default:
			transient = append(transient, err)
		}
	}

	if len(invalid) > 0 {
		s.logger.Warn("invalid device tokens",
			"request_id", job.RequestID,
			"tokens", invalid,
		)
	}

	if sent == 0 {
		if len(transient) > 0 {
			return "", errors.Join(append([]error{ErrTransient}, transient...)...)
		}
		return "", fmt.Errorf("%w: all %d device tokens rejected", ErrPermanent, len(job.Recipients))
	}

	if sent < len(job.Recipients) {
		s.logger.Warn("push partially delivered",
			"request_id", job.RequestID,
			"sent", sent,
			"total", len(job.Recipients),
		)
	}
	return firstID, nil
}

func (s *FCMSender) sendOne(ctx context.Context, msg fcmMessage) (string, error) {
	body, err := json.Marshal(fcmRequest{Message: msg})
	if err != nil {
		return "", fmt.Errorf("%w: encode fcm message: %v", ErrPermanent, err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", s.endpoint, s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build fcm request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fcm request: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var parsed fcmResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode == http.StatusOK {
		return parsed.Name, nil
	}

	detail := strings.TrimSpace(string(raw))
	if parsed.Error != nil {
		detail = parsed.Error.Status + ": " + parsed.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusForbidden:
		// UNREGISTERED, INVALID_ARGUMENT, SENDER_ID_MISMATCH
		return "", fmt.Errorf("%w: fcm %d: %s", ErrPermanent, resp.StatusCode, detail)
	default:
		return "", fmt.Errorf("%w: fcm %d: %s", ErrTransient, resp.StatusCode, detail)
	}
}

// stringMap приводит metadata к map[string]string (FCM data принимает только строки).
func stringMap(md map[string]any) map[string]string {
	out := make(map[string]string, len(md)+1)
	for k, v := range md {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "…" + token[len(token)-4:]
}
