package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/chatsoak/internal/domain"
)

// RedisOptions — параметры Redis-журнала.
type RedisOptions struct {
	// URL — строка подключения (default: redis://localhost:6379).
	URL string

	// Key — ключ списка (default: chatsoak:messages).
	Key string

	// MaxLen — сколько последних записей хранить (default: 10000).
	MaxLen int64

	// ConnectTimeout — таймаут подключения (default: 5s).
	ConnectTimeout time.Duration
}

// Redis — журнал в Redis-списке: RPUSH + LTRIM, история через LRANGE.
type Redis struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedis подключается к Redis и проверяет соединение.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = "chatsoak:messages"
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = 10000
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{client: client, key: opts.Key, maxLen: opts.MaxLen}, nil
}

// Append добавляет запись в конец списка и обрезает его до MaxLen.
func (r *Redis) Append(ctx context.Context, rec domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, -r.maxLen, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append to %s: %w", r.key, err)
	}

	return nil
}

// Recent возвращает последние limit записей, новые первыми.
func (r *Redis) Recent(ctx context.Context, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	items, err := r.client.LRange(ctx, r.key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.key, err)
	}

	records := make([]domain.Record, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var rec domain.Record
		if err := json.Unmarshal([]byte(items[i]), &rec); err != nil {
			// Чужие значения в списке пропускаем
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Close закрывает соединение.
func (r *Redis) Close() error {
	return r.client.Close()
}
