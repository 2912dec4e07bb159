package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/shaiso/chatsoak/internal/domain"
)

// Executor открывает сессии с чат-ботом.
//
// Реализации: HTTPExecutor, WebSocketExecutor, DryRunExecutor.
//
// Acquire может блокироваться надолго (загрузка страницы, ручной логин),
// но обязан прерываться по ctx. Ошибка Acquire считается временной.
type Executor interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session — открытая сессия, через которую отправляются сообщения.
//
// Send отправляет одно сообщение. Ошибка Send — ошибка действия:
// воркер закроет сессию и откроет новую. Отсутствие ответа ошибкой не является.
//
// Close освобождает ресурсы; повторный вызов безопасен.
type Session interface {
	Send(ctx context.Context, prompt string) (Reply, error)
	Close() error
}

// Reply — результат отправки.
type Reply struct {
	// Text — текст ответа, если Captured.
	Text string

	// Captured — ответ получен.
	Captured bool
}

// TextReply создаёт Reply с ответом. Пустой текст означает отсутствие ответа.
func TextReply(text string) Reply {
	return Reply{Text: text, Captured: text != ""}
}

// Factory создаёт executor по описанию цели.
type Factory func(target domain.Target) (Executor, error)

// Registry — реестр фабрик executor'ов по типу цели.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry создаёт реестр с зарегистрированными executor'ами по умолчанию.
//
// Регистрирует: http, websocket, dryrun.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(domain.TargetKindHTTP, func(t domain.Target) (Executor, error) {
		return NewHTTPExecutor(t)
	})
	r.Register(domain.TargetKindWebSocket, func(t domain.Target) (Executor, error) {
		return NewWebSocketExecutor(t)
	})
	r.Register(domain.TargetKindDryRun, func(t domain.Target) (Executor, error) {
		return &DryRunExecutor{Latency: t.Latency}, nil
	})
	return r
}

// Register добавляет фабрику для типа цели.
func (r *Registry) Register(kind string, factory Factory) {
	r.factories[kind] = factory
}

// Build создаёт executor для цели.
func (r *Registry) Build(target domain.Target) (Executor, error) {
	factory, ok := r.factories[target.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecutor, target.Kind)
	}
	return factory(target)
}

// Dynamic возвращает executor, который собирается заново на каждый Acquire
// из текущего target(). Изменения цели применяются со следующей сессии.
func (r *Registry) Dynamic(target func() domain.Target) Executor {
	return &dynamicExecutor{registry: r, target: target}
}

type dynamicExecutor struct {
	registry *Registry
	target   func() domain.Target
}

func (e *dynamicExecutor) Acquire(ctx context.Context) (Session, error) {
	exec, err := e.registry.Build(e.target())
	if err != nil {
		return nil, fmt.Errorf("build executor: %w", err)
	}
	return exec.Acquire(ctx)
}

// Kinds возвращает зарегистрированные типы в алфавитном порядке.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
