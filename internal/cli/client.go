package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из API, CLI не импортирует internal/api) ---

// DispatchResponse — результат POST /api/v1/notifications.
type DispatchResponse struct {
	NotificationID string `json:"notification_id"`
	Channels       struct {
		Email bool `json:"email"`
		Push  bool `json:"push"`
	} `json:"channels"`
}

// StatusRecord — статус доставки по каналу.
type StatusRecord struct {
	NotificationID string `json:"notification_id"`
	Channel        string `json:"channel"`
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	Error          string `json:"error,omitempty"`
}

// DeadLetterResponse — запись архива dead-letter.
type DeadLetterResponse struct {
	ID         string          `json:"id"`
	Channel    string          `json:"channel"`
	RequestID  string          `json:"request_id"`
	Payload    json.RawMessage `json:"payload"`
	Reason     string          `json:"reason"`
	FailedAt   string          `json:"failed_at"`
	ReplayedAt string          `json:"replayed_at,omitempty"`
}

// HealthStatus — состояние одной зависимости.
type HealthStatus struct {
	Status string `json:"status"`
}

// --- Request types ---

// SendRequest — тело POST /api/v1/notifications.
type SendRequest struct {
	RequestID        string         `json:"request_id,omitempty"`
	NotificationType string         `json:"notification_type,omitempty"`
	UserID           string         `json:"user_id,omitempty"`
	TemplateCode     string         `json:"template_code,omitempty"`
	Variables        map[string]any `json:"variables,omitempty"`
	Priority         *int           `json:"priority,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Relay API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. token — bearer-токен, может быть пустым.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Notifications ---

// Send отправляет уведомление.
func (c *Client) Send(req SendRequest) (*DispatchResponse, error) {
	var resp DispatchResponse
	err := c.post("/api/v1/notifications", req, &resp)
	return &resp, err
}

// Status возвращает статусы уведомления. Пустой channel — все каналы.
func (c *Client) Status(notificationID, channel string) (map[string]*StatusRecord, error) {
	path := "/api/v1/notifications/status/" + url.PathEscape(notificationID)
	if channel != "" {
		path += "?" + url.Values{"channel": {channel}}.Encode()
	}

	var statuses map[string]*StatusRecord
	err := c.get(path, &statuses)
	return statuses, err
}

// --- Dead letters ---

// ListDeadLetters возвращает последние dead letters.
func (c *Client) ListDeadLetters(channel string, limit int) ([]DeadLetterResponse, error) {
	params := url.Values{}
	if channel != "" {
		params.Set("channel", channel)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var letters []DeadLetterResponse
	err := c.list("/api/v1/dead-letters", params, &letters)
	return letters, err
}

// ReplayDeadLetter переотправляет dead letter.
func (c *Client) ReplayDeadLetter(id string) (*DeadLetterResponse, error) {
	var dl DeadLetterResponse
	err := c.post("/api/v1/dead-letters/"+url.PathEscape(id)+"/replay", nil, &dl)
	return &dl, err
}

// --- Health ---

// Health возвращает состояние зависимостей API.
// Ответ /health не обёрнут в data.
func (c *Client) Health() (map[string]HealthStatus, error) {
	resp, err := c.do(http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var report map[string]HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return report, nil
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Code == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
