package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/chatsoak/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы событий.
const (
	MessageTypeMessageSent MessageType = "message.sent"
	MessageTypeWorkerState MessageType = "worker.state"
)

// Типы команд управления.
const (
	MessageTypeControlStart  MessageType = "control.start"
	MessageTypeControlStop   MessageType = "control.stop"
	MessageTypeControlPacing MessageType = "control.pacing"
)

// Message — конверт любого сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload,omitempty"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт конверт с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishMessageSent публикует запись журнала как событие message.sent.
func (p *Publisher) PublishMessageSent(ctx context.Context, rec domain.Record) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyMessageSent, NewMessage(MessageTypeMessageSent, rec))
}

// PublishWorkerState публикует снимок статуса воркера.
func (p *Publisher) PublishWorkerState(ctx context.Context, st domain.Status) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyWorkerState, NewMessage(MessageTypeWorkerState, st))
}

// WorkerStateChanged реализует worker.Notifier.
func (p *Publisher) WorkerStateChanged(ctx context.Context, st domain.Status) error {
	return p.PublishWorkerState(ctx, st)
}
