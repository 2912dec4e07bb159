package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// StatusResponse — снимок состояния воркера.
type StatusResponse struct {
	Running         bool    `json:"running"`
	State           string  `json:"state"`
	SessionID       string  `json:"session_id,omitempty"`
	MessagesSent    int64   `json:"messages_sent"`
	ErrorsCount     int64   `json:"errors_count"`
	LastMessage     *string `json:"last_message"`
	LastResponse    *string `json:"last_response"`
	LastError       *string `json:"last_error"`
	StartedAt       *string `json:"started_at"`
	LastSentAt      *string `json:"last_sent_at"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	IntervalSeconds float64 `json:"interval_seconds"`
	JitterSeconds   float64 `json:"jitter"`
}

// MetricsResponse — производные показатели.
type MetricsResponse struct {
	Running            bool     `json:"running"`
	UptimeSeconds      float64  `json:"uptime_seconds"`
	MessagesSent       int64    `json:"messages_sent"`
	ErrorsCount        int64    `json:"errors_count"`
	AvgIntervalSeconds *float64 `json:"avg_interval_seconds"`
	MessagesPerMinute  float64  `json:"messages_per_min"`
	LastSentAt         *string  `json:"last_sent_at"`
}

// ActionResponse — ответ на start/stop.
type ActionResponse struct {
	Message string         `json:"message"`
	Status  StatusResponse `json:"status"`
}

// PacingResponse — темп, который сейчас использует воркер.
type PacingResponse struct {
	IntervalSeconds     float64 `json:"interval_seconds"`
	JitterSeconds       float64 `json:"jitter"`
	RestartDelaySeconds float64 `json:"restart_delay"`
	Backoff             string  `json:"restart_backoff"`
	MinDelaySeconds     float64 `json:"min_delay_seconds"`
}

// ConfigResponse — конфигурация агента.
// Config оставлен как map: CLI показывает его целиком.
type ConfigResponse struct {
	Config map[string]any `json:"config"`
	Pacing PacingResponse `json:"pacing"`
}

// MessageResponse — запись журнала.
type MessageResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Response  string `json:"response"`
}

// --- Request types ---

// ConfigPatch — частичное обновление конфигурации.
type ConfigPatch struct {
	IntervalSeconds *float64 `json:"interval_seconds,omitempty"`
	Jitter          *float64 `json:"jitter,omitempty"`
	RestartDelay    *float64 `json:"restart_delay,omitempty"`
	URL             *string  `json:"url,omitempty"`
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

// Client — HTTP-клиент для API агента.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. apiKey == "" — без ключа.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			// Stop ждёт завершения цикла до stop_timeout
			Timeout: 30 * time.Second,
		},
	}
}

// --- Worker ---

// Status возвращает состояние воркера.
func (c *Client) Status() (*StatusResponse, error) {
	var st StatusResponse
	err := c.get("/api/status", &st)
	return &st, err
}

// Metrics возвращает показатели нагрузки.
func (c *Client) Metrics() (*MetricsResponse, error) {
	var m MetricsResponse
	err := c.get("/api/metrics", &m)
	return &m, err
}

// Start запускает воркер.
func (c *Client) Start() (*ActionResponse, error) {
	var resp ActionResponse
	err := c.post("/api/start", nil, &resp)
	return &resp, err
}

// Stop останавливает воркер.
func (c *Client) Stop() (*ActionResponse, error) {
	var resp ActionResponse
	err := c.post("/api/stop", nil, &resp)
	return &resp, err
}

// --- Config ---

// GetConfig возвращает конфигурацию.
func (c *Client) GetConfig() (*ConfigResponse, error) {
	var cfg ConfigResponse
	err := c.get("/api/config", &cfg)
	return &cfg, err
}

// UpdateConfig частично обновляет конфигурацию.
func (c *Client) UpdateConfig(patch ConfigPatch) (*ConfigResponse, error) {
	var cfg ConfigResponse
	err := c.post("/api/config", patch, &cfg)
	return &cfg, err
}

// --- Messages ---

// Messages возвращает последние записи журнала.
func (c *Client) Messages(limit int) ([]MessageResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var messages []MessageResponse
	err := c.list("/api/messages", params, &messages)
	return messages, err
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
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
