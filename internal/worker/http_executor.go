package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shaiso/chatsoak/internal/domain"
)

const (
	defaultHTTPTimeout  = 60 * time.Second
	defaultMessageField = "message"
	defaultReplyField   = "reply"
	maxReplyBytes       = 1 << 20
)

// HTTPExecutor — executor для чат-бота с HTTP API.
//
// Acquire:
//   - создаёт клиента с cookie jar (сессия живёт, пока жив клиент)
//   - загружает WarmupURL, если задан (HTTP >= 400 — ошибка)
//   - ждёт AcquireWait (окно для ручного логина), прерывается по ctx
//
// Send:
//   - отправляет {MessageField: prompt} как JSON методом Method (default: POST)
//   - HTTP >= 400 — ошибка действия (ErrHTTPStatus)
//   - ответ берётся из ReplyField (путь через точку) JSON-тела,
//     либо всё тело как текст, если оно не JSON
type HTTPExecutor struct {
	target domain.Target
}

// NewHTTPExecutor создаёт HTTPExecutor, подставляя значения по умолчанию.
func NewHTTPExecutor(target domain.Target) (*HTTPExecutor, error) {
	if target.URL == "" {
		return nil, fmt.Errorf("http executor: url is required")
	}
	if target.Method == "" {
		target.Method = http.MethodPost
	}
	if target.MessageField == "" {
		target.MessageField = defaultMessageField
	}
	if target.ReplyField == "" {
		target.ReplyField = defaultReplyField
	}
	if target.Timeout <= 0 {
		target.Timeout = defaultHTTPTimeout
	}
	return &HTTPExecutor{target: target}, nil
}

// Acquire открывает HTTP-сессию.
func (e *HTTPExecutor) Acquire(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: cookie jar: %v", ErrAcquireFailed, err)
	}

	s := &httpSession{
		target: e.target,
		client: &http.Client{Jar: jar, Timeout: e.target.Timeout},
	}

	if e.target.WarmupURL != "" {
		if err := s.warmup(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}

	if e.target.AcquireWait > 0 {
		select {
		case <-time.After(e.target.AcquireWait):
		case <-ctx.Done():
			s.Close()
			return nil, ctx.Err()
		}
	}

	return s, nil
}

type httpSession struct {
	target domain.Target
	client *http.Client
	closed atomic.Bool
}

// warmup загружает стартовую страницу (cookies попадают в jar).
func (s *httpSession) warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.target.WarmupURL, nil)
	if err != nil {
		return fmt.Errorf("%w: create warmup request: %v", ErrAcquireFailed, err)
	}
	setHeaders(req, s.target.Headers)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: warmup: %v", ErrAcquireFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: warmup: %w: HTTP %d", ErrAcquireFailed, ErrHTTPStatus, resp.StatusCode)
	}
	return nil
}

// Send отправляет одно сообщение.
func (s *httpSession) Send(ctx context.Context, prompt string) (Reply, error) {
	if s.closed.Load() {
		return Reply{}, ErrSessionClosed
	}

	bodyBytes, err := json.Marshal(map[string]string{s.target.MessageField: prompt})
	if err != nil {
		return Reply{}, fmt.Errorf("%w: marshal body: %v", ErrSendFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, s.target.Method, s.target.URL, bytes.NewReader(bodyBytes))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: create request: %v", ErrSendFailed, err)
	}
	setHeaders(req, s.target.Headers)
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: read response: %v", ErrSendFailed, err)
	}

	if resp.StatusCode >= 400 {
		return Reply{}, fmt.Errorf("%w: HTTP %d: %s", ErrHTTPStatus, resp.StatusCode, truncate(string(respBody), 200))
	}

	return TextReply(extractReply(respBody, s.target.ReplyField)), nil
}

// Close закрывает keep-alive соединения клиента.
func (s *httpSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.client.CloseIdleConnections()
	return nil
}

// extractReply достаёт текст ответа из тела.
//
// JSON-объект — значение по пути field ("data.reply"),
// JSON-строка — сама строка, не JSON — всё тело.
func extractReply(body []byte, field string) string {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return strings.TrimSpace(string(body))
	}

	if s, ok := parsed.(string); ok {
		return strings.TrimSpace(s)
	}

	value := lookupPath(parsed, field)
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// lookupPath проходит по вложенным объектам по пути через точку.
func lookupPath(v any, path string) any {
	if path == "" {
		return v
	}
	for _, key := range strings.Split(path, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

// setHeaders устанавливает заголовки цели.
func setHeaders(req *http.Request, headers map[string]string) {
	for key, val := range headers {
		req.Header.Set(key, val)
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
