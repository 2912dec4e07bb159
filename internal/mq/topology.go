package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEvents  Exchange = "chatsoak.events"
	ExchangeControl Exchange = "chatsoak.control"
	ExchangeDLQ     Exchange = "chatsoak.dlq"
)

// Queues — имена очередей.
const (
	QueueControlCommands Queue = "control.commands"
	QueueDLQControl      Queue = "dlq.control"
)

// Routing keys.
const (
	RoutingKeyMessageSent RoutingKey = "message.sent"
	RoutingKeyWorkerState RoutingKey = "worker.state"
	RoutingKeyCommand     RoutingKey = "command"
	RoutingKeyDLQControl  RoutingKey = "control"
)

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		// events — topic: потребители подписываются на message.* / worker.*
		{ExchangeEvents, "topic"},
		{ExchangeControl, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// control.commands — ошибки обработки уходят в dlq.control
		{QueueControlCommands, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQControl),
		}},
		{QueueDLQControl, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueControlCommands, RoutingKeyCommand, ExchangeControl},
		{QueueDLQControl, RoutingKeyDLQControl, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  chatsoak RabbitMQ topology:

    chatsoak.events (topic)
    ├── message.sent   — каждая захваченная пара вопрос/ответ
    └── worker.state   — снимок статуса после start/stop

    chatsoak.control (direct)
    └── control.commands [routing: command]
            Consumer: chatsoak-agent
            DLQ: dlq.control

    chatsoak.dlq (direct)
    └── dlq.control [routing: control]
  `
}
