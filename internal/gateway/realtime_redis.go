package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans change events out through Redis pub/sub so that every
// server instance sees writes made by the others. Channels are per table.
type RedisBroker struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisBroker connects to Redis and verifies the connection.
func NewRedisBroker(addr, password string, db int, prefix string, logger *zap.Logger) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisBrokerFromClient(client, prefix, logger), nil
}

func NewRedisBrokerFromClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, prefix: prefix, logger: logger}
}

func (b *RedisBroker) channel(table string) string {
	return b.prefix + table
}

func (b *RedisBroker) Publish(ctx context.Context, ev ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	return b.client.Publish(ctx, b.channel(ev.Table), data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, f Filter, h Handler) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel(f.Table))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", f.Table, err)
	}

	go func() {
		for msg := range ps.Channel() {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed change event",
					zap.String("channel", msg.Channel),
					zap.Error(err),
				)
				continue
			}
			if f.Matches(ev) {
				h(ev)
			}
		}
	}()

	return newSubscription(f, func() {
		if err := ps.Close(); err != nil {
			b.logger.Warn("failed to close redis subscription", zap.String("filter", f.String()), zap.Error(err))
		}
	}), nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
