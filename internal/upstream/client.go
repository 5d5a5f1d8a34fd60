package upstream

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
	"github.com/shaiso/Relay/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultCallTimeout    = 7 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = time.Second

	maxResponseBody = 1 << 20 // 1 MB
)

// Gate — breaker, которым клиент защищает вызовы.
// Реализуется *breaker.Registry.
type Gate interface {
	CanExecute(service string) bool
	OnSuccess(service string)
	OnFailure(service string)
	Release(service string)
}

// Config — конфигурация Client.
type Config struct {
	// Service — имя сервиса для breaker, логов и метрик.
	Service string

	// BaseURL — адрес сервиса без завершающего слэша.
	BaseURL string

	// Breaker — обязательный.
	Breaker Gate

	HTTPClient *http.Client

	// RequestTimeout — таймаут одной попытки.
	RequestTimeout time.Duration

	// CallTimeout — таймаут всего вызова вместе с повторами.
	CallTimeout time.Duration

	// MaxRetries — число повторов после первой попытки.
	MaxRetries int

	// RetryDelay — задержка перед повтором n равна n * RetryDelay.
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Client — resilient HTTP клиент к внешнему сервису.
//
// Порядок вызова:
//  1. breaker закрыт? иначе сразу ErrServiceUnavailable без сети
//  2. попытка с RequestTimeout
//  3. повтор только при сетевой ошибке или 5xx, задержка attempt * RetryDelay
//  4. итог: OnFailure при сетевой ошибке/5xx, иначе OnSuccess
//  5. статус → таксономия domain (400, 401, 404, 409, остальное — unavailable)
type Client struct {
	service        string
	baseURL        string
	gate           Gate
	http           *http.Client
	requestTimeout time.Duration
	callTimeout    time.Duration
	maxRetries     int
	retryDelay     time.Duration
	logger         *slog.Logger
}

// New создаёт Client.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		service:        cfg.Service,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		gate:           cfg.Breaker,
		http:           cfg.HTTPClient,
		requestTimeout: cfg.RequestTimeout,
		callTimeout:    cfg.CallTimeout,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		logger:         telemetry.WithService(cfg.Logger, cfg.Service),
	}
}

// Service возвращает имя сервиса.
func (c *Client) Service() string {
	return c.service
}

// GetJSON выполняет GET и декодирует ответ в out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Health проверяет GET /health. Вызов тоже идёт через breaker.
func (c *Client) Health(ctx context.Context) error {
	return c.Do(ctx, http.MethodGet, "/health", nil, nil)
}

// attemptResult — итог одной попытки.
type attemptResult struct {
	status int
	body   []byte
	err    error // сетевая ошибка, ответа нет
}

func (r attemptResult) retryable() bool {
	return r.err != nil || r.status >= 500
}

// Do выполняет запрос к сервису. body (если не nil) кодируется в JSON,
// успешный ответ декодируется в out (если не nil).
//
// Все ошибки — *domain.UpstreamError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		payload = data
	}

	if !c.gate.CanExecute(c.service) {
		telemetry.UpstreamRequests.WithLabelValues(c.service, "rejected").Inc()
		c.logger.Warn("circuit open, request rejected", "method", method, "path", path)
		return &domain.UpstreamError{
			Service: c.service,
			Body:    "circuit breaker is open",
			Err:     domain.ErrServiceUnavailable,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var res attemptResult
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.retryDelay
			c.logger.Debug("retrying request",
				"method", method,
				"path", path,
				"attempt", attempt,
				"delay", delay,
			)
			if !sleep(callCtx, delay) {
				break
			}
		}

		res = c.attempt(callCtx, method, path, payload)
		c.observe(res)

		if !res.retryable() {
			break
		}
	}

	// Отмена вызывающей стороной не говорит о здоровье сервиса.
	if res.err != nil && ctx.Err() != nil {
		c.gate.Release(c.service)
		return &domain.UpstreamError{
			Service: c.service,
			Body:    ctx.Err().Error(),
			Err:     domain.ErrServiceUnavailable,
		}
	}

	if res.retryable() {
		c.gate.OnFailure(c.service)
		return c.failure(method, path, res)
	}

	c.gate.OnSuccess(c.service)

	if res.status < 200 || res.status >= 300 {
		return c.failure(method, path, res)
	}

	if out != nil && len(res.body) > 0 {
		if err := json.Unmarshal(res.body, out); err != nil {
			return &domain.UpstreamError{
				Service:    c.service,
				StatusCode: res.status,
				Body:       fmt.Sprintf("decode response: %v", err),
				Err:        domain.ErrServiceUnavailable,
			}
		}
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) attemptResult {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return attemptResult{err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return attemptResult{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return attemptResult{err: fmt.Errorf("read response: %w", err)}
	}

	return attemptResult{status: resp.StatusCode, body: data}
}

func (c *Client) observe(res attemptResult) {
	result := "ok"
	switch {
	case res.err != nil:
		result = "transport_error"
	case res.status >= 500:
		result = "server_error"
	case res.status >= 400:
		result = "client_error"
	}
	telemetry.UpstreamRequests.WithLabelValues(c.service, result).Inc()
}

func (c *Client) failure(method, path string, res attemptResult) error {
	e := &domain.UpstreamError{
		Service:    c.service,
		StatusCode: res.status,
		Err:        MapStatus(res.status),
	}

	if res.err != nil {
		e.Body = res.err.Error()
	} else {
		e.Body = extractMessage(res.body)
	}

	if errors.Is(e.Err, domain.ErrServiceUnavailable) {
		c.logger.Error("upstream request failed",
			"method", method,
			"path", path,
			"status", res.status,
			"error", e.Body,
		)
	} else {
		c.logger.Warn("upstream request rejected",
			"method", method,
			"path", path,
			"status", res.status,
			"error", e.Body,
		)
	}
	return e
}

// MapStatus отображает HTTP статус в ошибку таксономии.
func MapStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrBadRequest
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	default:
		return domain.ErrServiceUnavailable
	}
}

// extractMessage достаёт message/error из JSON тела, иначе возвращает тело как есть.
func extractMessage(body []byte) string {
	var parsed struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, v := range []any{parsed.Message, parsed.Error} {
			switch m := v.(type) {
			case string:
				if m != "" {
					return m
				}
			case map[string]any:
				if s, ok := m["message"].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// sleep ждёт d или отмены ctx. Возвращает false при отмене.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
