package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/chatsoak/internal/config"
	"github.com/shaiso/chatsoak/internal/mq"
	"github.com/shaiso/chatsoak/internal/worker"
)

// amqpBus — подключение к RabbitMQ. Пустой bus — RabbitMQ не используется.
type amqpBus struct {
	conn      *mq.Connection
	publisher *mq.Publisher
	control   bool
	logger    *slog.Logger
}

// setupAMQP подключается к RabbitMQ и объявляет топологию.
// Недоступный брокер не фатален: агент работает без событий и команд.
func setupAMQP(ctx context.Context, cfg config.Config, logger *slog.Logger) (*amqpBus, error) {
	bus := &amqpBus{control: cfg.AMQP.Control, logger: logger}
	if !cfg.AMQP.Enabled {
		return bus, nil
	}

	url := cfg.AMQP.URL
	if url == "" {
		url = mq.DefaultURL()
	}

	conn, err := mq.NewConnection(url, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running without events and control", "error", err)
		return bus, nil
	}

	if err := mq.SetupTopology(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setup amqp topology: %w", err)
	}
	logger.Info("amqp topology ready", "topology", mq.TopologyInfo())

	bus.conn = conn
	bus.publisher = mq.NewPublisher(conn, logger)
	return bus, nil
}

// startConsumer запускает consumer очереди control.commands, если включено.
func (b *amqpBus) startConsumer(ctx context.Context, w *worker.Worker, store *config.Store) {
	if b.conn == nil || !b.control {
		return
	}

	consumer := mq.NewConsumer(b.conn, b.logger, mq.ConsumerConfig{
		Queue:   mq.QueueControlCommands,
		Handler: w.HandleControl(store.SetPacing),
	})

	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("control consumer stopped", "error", err)
		}
	}()
}

// Close закрывает соединение.
func (b *amqpBus) Close() {
	if b.conn == nil {
		return
	}
	if err := b.conn.Close(); err != nil {
		b.logger.Warn("close amqp connection", "error", err)
	}
}
