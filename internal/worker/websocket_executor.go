package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaiso/chatsoak/internal/domain"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultReplyTimeout     = 30 * time.Second
	replyBuffer             = 16
)

// WebSocketExecutor — executor для чат-бота с websocket-протоколом.
//
// Acquire открывает соединение и запускает горутину чтения.
// Send отправляет сообщение (JSON {MessageField: prompt} или сырой текст,
// если MessageField пустой) и ждёт следующий входящий фрейм не дольше
// ReplyTimeout. Таймаут ответа — успешный цикл без ответа;
// ошибка записи или разрыв соединения — ошибка действия.
type WebSocketExecutor struct {
	target domain.Target
	dialer *websocket.Dialer
}

// NewWebSocketExecutor создаёт WebSocketExecutor.
func NewWebSocketExecutor(target domain.Target) (*WebSocketExecutor, error) {
	if target.URL == "" {
		return nil, fmt.Errorf("websocket executor: url is required")
	}
	if target.ReplyField == "" {
		target.ReplyField = defaultReplyField
	}
	if target.ReplyTimeout <= 0 {
		target.ReplyTimeout = defaultReplyTimeout
	}
	if target.Timeout <= 0 {
		target.Timeout = defaultHandshakeTimeout
	}

	return &WebSocketExecutor{
		target: target,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: target.Timeout,
		},
	}, nil
}

// Acquire открывает websocket-соединение.
func (e *WebSocketExecutor) Acquire(ctx context.Context) (Session, error) {
	header := http.Header{}
	for key, val := range e.target.Headers {
		header.Set(key, val)
	}

	conn, resp, err := e.dialer.DialContext(ctx, e.target.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial: %w: HTTP %d", ErrAcquireFailed, ErrHTTPStatus, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial: %v", ErrAcquireFailed, err)
	}

	s := &wsSession{
		target:  e.target,
		conn:    conn,
		replies: make(chan []byte, replyBuffer),
		done:    make(chan struct{}),
	}
	go s.readLoop()

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

type wsSession struct {
	target domain.Target
	conn   *websocket.Conn

	replies chan []byte
	done    chan struct{}

	errMu   sync.Mutex
	readErr error

	closed atomic.Bool
}

// readLoop читает фреймы, пока соединение живо.
// При переполнении буфера старые фреймы вытесняются.
func (s *wsSession) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.errMu.Lock()
			s.readErr = err
			s.errMu.Unlock()
			return
		}

		select {
		case s.replies <- data:
		default:
			select {
			case <-s.replies:
			default:
			}
			select {
			case s.replies <- data:
			default:
			}
		}
	}
}

func (s *wsSession) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.readErr
}

// Send отправляет сообщение и ждёт ответ.
func (s *wsSession) Send(ctx context.Context, prompt string) (Reply, error) {
	if s.closed.Load() {
		return Reply{}, ErrSessionClosed
	}

	select {
	case <-s.done:
		return Reply{}, fmt.Errorf("%w: connection closed: %v", ErrSendFailed, s.err())
	default:
	}

	// Отбрасываем фреймы, пришедшие до отправки
	s.drain()

	s.conn.SetWriteDeadline(time.Now().Add(s.target.Timeout))
	var err error
	if s.target.MessageField != "" {
		err = s.conn.WriteJSON(map[string]string{s.target.MessageField: prompt})
	} else {
		err = s.conn.WriteMessage(websocket.TextMessage, []byte(prompt))
	}
	if err != nil {
		return Reply{}, fmt.Errorf("%w: write: %v", ErrSendFailed, err)
	}

	timer := time.NewTimer(s.target.ReplyTimeout)
	defer timer.Stop()

	select {
	case data := <-s.replies:
		return TextReply(extractReply(data, s.target.ReplyField)), nil
	case <-s.done:
		return Reply{}, fmt.Errorf("%w: connection closed: %v", ErrSendFailed, s.err())
	case <-timer.C:
		// Ответ не пришёл — цикл успешен, ответа нет
		return Reply{}, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

func (s *wsSession) drain() {
	for {
		select {
		case <-s.replies:
		default:
			return
		}
	}
}

// Close отправляет close-фрейм и закрывает соединение.
func (s *wsSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
