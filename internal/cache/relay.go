package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultInvalidationChannel - канал Redis для инвалидаций между экземплярами.
const DefaultInvalidationChannel = "storylens:invalidate"

type relayMessage struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// Relay пересылает инвалидации между экземплярами сервера через Redis Pub/Sub.
// Собственные сообщения экземпляр пропускает.
type Relay struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

func NewRelay(client *redis.Client, channel string, logger *zap.Logger) *Relay {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger.Named("CacheRelay"),
	}
}

// Publish сообщает остальным экземплярам об инвалидации. Подходит как InvalidateFunc.
func (r *Relay) Publish(key string) {
	payload, err := json.Marshal(relayMessage{Origin: r.origin, Key: key})
	if err != nil {
		r.logger.Error("Failed to marshal relay message", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("Failed to publish invalidation", zap.String("key", key), zap.Error(err))
	}
}

// Run подписывается на канал и вызывает fn для чужих инвалидаций до отмены ctx.
func (r *Relay) Run(ctx context.Context, fn InvalidateFunc) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("Listening for invalidations", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				r.logger.Warn("Malformed relay message", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if m.Origin == r.origin {
				continue
			}
			fn(m.Key)
		}
	}
}
