package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis publishes and subscribes match documents over one Redis channel per
// match.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedis connects and pings the server before returning a bridge.
func NewRedis(addr, password string, log *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	log.Info("connected to redis", zap.String("addr", addr))
	return &Redis{client: client, log: log}, nil
}

func channelFor(matchID string) string {
	return "match:" + matchID
}

func (r *Redis) PublishMatch(ctx context.Context, matchID string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding match %s envelope: %w", matchID, err)
	}
	if err := r.client.Publish(ctx, channelFor(matchID), payload).Err(); err != nil {
		return fmt.Errorf("publishing match %s: %w", matchID, err)
	}
	return nil
}

// SubscribeMatch delivers remote envelopes for one match until ctx is
// cancelled. Undecodable messages are logged and skipped.
func (r *Redis) SubscribeMatch(ctx context.Context, matchID string) (<-chan Envelope, func()) {
	sub := r.client.Subscribe(ctx, channelFor(matchID))
	out := make(chan Envelope, 8)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("dropping undecodable match envelope",
					zap.String("match_id", matchID), zap.Error(err))
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel
}

func (r *Redis) Close() error { return r.client.Close() }

var _ Publisher = (*Redis)(nil)
