package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

// Envelope is a broadcast crossing instance boundaries over redis pub/sub.
// Origin identifies the publishing instance so it can skip its own messages.
type Envelope struct {
	Origin         string          `json:"origin"`
	ConversationID string          `json:"conversation_id"`
	Event          string          `json:"event"`
	Data           json.RawMessage `json:"data"`
}

// Bus bridges broadcasts between horizontally scaled instances. Each
// instance publishes every local broadcast and re-delivers remote ones to its
// own hub.
type Bus struct {
	rdb     *goredis.Client
	channel string
}

func NewBus(addr, channel string) (*Bus, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Bus{rdb: rdb, channel: channel}, nil
}

func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the broadcast channel and hands every envelope
// to onMsg until ctx is done.
func (b *Bus) StartForwarder(ctx context.Context, onMsg func(env Envelope)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// Confirms the subscription actually started.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					utils.LogWarn("bus: bad broadcast payload", map[string]interface{}{
						"error": err.Error(),
					})
					continue
				}
				onMsg(env)
			}
		}
	}()

	return nil
}

func (b *Bus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
