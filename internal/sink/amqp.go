package sink

import (
	"context"

	"github.com/shaiso/chatsoak/internal/domain"
)

// EventPublisher — публикация события message.sent (mq.Publisher).
type EventPublisher interface {
	PublishMessageSent(ctx context.Context, rec domain.Record) error
}

// AMQP — sink, который публикует каждую запись в chatsoak.events.
type AMQP struct {
	publisher EventPublisher
}

// NewAMQP создаёт AMQP sink.
func NewAMQP(publisher EventPublisher) *AMQP {
	return &AMQP{publisher: publisher}
}

// Append публикует запись.
func (a *AMQP) Append(ctx context.Context, rec domain.Record) error {
	return a.publisher.PublishMessageSent(ctx, rec)
}
