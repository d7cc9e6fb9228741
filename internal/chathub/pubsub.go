package chathub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bloodlink/backend/internal/models"
)

// DefaultRedisChannel is the Pub/Sub channel shared by all instances.
const DefaultRedisChannel = "chat:broadcast"

// RedisBus fans envelopes out through Redis Pub/Sub.
type RedisBus struct {
	Redis   *redis.Client
	Channel string
	Log     *zap.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, log *zap.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBus{Redis: rdb, Channel: channel, Log: log}
}

func (b *RedisBus) Publish(ctx context.Context, env models.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.Redis.Publish(ctx, b.Channel, payload).Err()
}

// Subscribe waits for Redis to confirm the subscription before returning, so
// nothing published afterwards is missed.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan models.Envelope, error) {
	pubsub := b.Redis.Subscribe(ctx, b.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan models.Envelope, subscriptionBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env models.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.Log.Warn("bad envelope on redis", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error {
	return b.Redis.Close()
}
