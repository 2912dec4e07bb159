package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shaiso/chatsoak/internal/config"
	"github.com/shaiso/chatsoak/internal/mq"
	"github.com/shaiso/chatsoak/internal/repo"
	"github.com/shaiso/chatsoak/internal/sink"
	"github.com/shaiso/chatsoak/internal/telemetry"
)

// sinkSet — журналы агента и источник истории для API.
type sinkSet struct {
	fanout  *sink.Fanout
	history sink.History
	closers []func()
}

// Close освобождает соединения журналов.
func (s *sinkSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildSinks открывает включённые журналы.
//
// Ошибка открытия журнала фатальна: агент без журнала, который явно
// включили, теряет результаты прогона.
func buildSinks(ctx context.Context, cfg config.Config, publisher *mq.Publisher, metrics *telemetry.Metrics, logger *slog.Logger) (*sinkSet, error) {
	set := &sinkSet{}
	var named []sink.Named
	histories := map[string]sink.History{}

	closeWith := func(name string, c io.Closer) {
		set.closers = append(set.closers, func() {
			if err := c.Close(); err != nil {
				logger.Warn("close sink", "sink", name, "error", err)
			}
		})
	}

	fail := func(err error) (*sinkSet, error) {
		set.Close()
		return nil, err
	}

	if cfg.Sinks.CSV {
		c, err := sink.NewCSV(cfg.CSVPath())
		if err != nil {
			return fail(fmt.Errorf("csv sink: %w", err))
		}
		named = append(named, sink.Named{Name: "csv", Sink: c})
		logger.Info("csv sink enabled", "path", c.Path())
	}

	if cfg.Sinks.SQLite.Enabled {
		s, err := sink.OpenSQLite(cfg.Sinks.SQLite.Path)
		if err != nil {
			return fail(fmt.Errorf("sqlite sink: %w", err))
		}
		closeWith("sqlite", s)
		named = append(named, sink.Named{Name: "sqlite", Sink: s})
		histories["sqlite"] = s
		logger.Info("sqlite sink enabled", "path", cfg.Sinks.SQLite.Path)
	}

	if cfg.Sinks.Postgres.Enabled {
		pool, err := repo.NewPool(ctx, cfg.Sinks.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("postgres sink: %w", err))
		}
		set.closers = append(set.closers, pool.Close)

		r := repo.NewMessageRepo(pool)
		if err := r.EnsureSchema(ctx); err != nil {
			return fail(fmt.Errorf("postgres schema: %w", err))
		}
		named = append(named, sink.Named{Name: "postgres", Sink: r})
		histories["postgres"] = r
		logger.Info("postgres sink enabled")
	}

	if cfg.Sinks.Redis.Enabled {
		r, err := sink.NewRedis(sink.RedisOptions{
			URL:    cfg.Sinks.Redis.URL,
			Key:    cfg.Sinks.Redis.Key,
			MaxLen: cfg.Sinks.Redis.MaxLen,
		})
		if err != nil {
			return fail(fmt.Errorf("redis sink: %w", err))
		}
		closeWith("redis", r)
		named = append(named, sink.Named{Name: "redis", Sink: r})
		histories["redis"] = r
		logger.Info("redis sink enabled", "key", cfg.Sinks.Redis.Key)
	}

	if cfg.Sinks.AMQP {
		if publisher == nil {
			logger.Warn("amqp sink requested but RabbitMQ is not connected")
		} else {
			named = append(named, sink.Named{Name: "amqp", Sink: sink.NewAMQP(publisher)})
			logger.Info("amqp sink enabled")
		}
	}

	set.fanout = sink.NewFanout(telemetry.WithComponent(logger, "sink"), metrics, named...)
	if set.fanout.Len() == 0 {
		logger.Warn("no sinks enabled, replies are kept only in status")
	} else {
		logger.Info("sinks ready", "sinks", set.fanout.Names())
	}

	// История: явно выбранная или первая доступная
	if name := cfg.Sinks.History; name != "" {
		h, ok := histories[name]
		if !ok {
			return fail(fmt.Errorf("%w: history sink %q is not enabled", config.ErrInvalidConfig, name))
		}
		set.history = h
	} else {
		for _, name := range []string{"sqlite", "postgres", "redis"} {
			if h, ok := histories[name]; ok {
				set.history = h
				break
			}
		}
	}

	return set, nil
}
