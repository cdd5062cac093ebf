package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// channel is the single pub/sub channel all chat events flow through.
// Routing to the right room happens in the subscriber, keyed by ChatID.
const channel = "minichat.chat.events"

// Event kinds carried over the relay.
const (
	KindNewMessage        = "new_message"
	KindMembershipChanged = "membership_changed"
)

// Event is the wire shape of a relay announcement. It carries no message
// content: subscribers are told which chat changed and re-fetch through
// the regular read APIs.
type Event struct {
	Kind   string    `json:"kind"`
	ChatID uuid.UUID `json:"chat_id"`
}

// RedisRelay fans chat events out through Redis pub/sub, so announcements
// reach WebSocket hubs on every server instance, not just the one that
// handled the request.
type RedisRelay struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisRelay(ctx context.Context, redisURL string, logger *zap.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connection established", zap.String("addr", opts.Addr))
	return &RedisRelay{rdb: rdb, logger: logger}, nil
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}

// AnnounceNewMessage publishes a new-message event. Fire-and-forget: a
// publish failure is logged and swallowed so it can never fail the send
// that triggered it.
func (r *RedisRelay) AnnounceNewMessage(ctx context.Context, chatID uuid.UUID) {
	r.publish(ctx, Event{Kind: KindNewMessage, ChatID: chatID})
}

// AnnounceMembershipChanged publishes a membership event, same contract.
func (r *RedisRelay) AnnounceMembershipChanged(ctx context.Context, chatID uuid.UUID) {
	r.publish(ctx, Event{Kind: KindMembershipChanged, ChatID: chatID})
}

func (r *RedisRelay) publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("marshal relay event", zap.Error(err))
		return
	}
	if err := r.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		r.logger.Error("publish relay event",
			zap.String("kind", ev.Kind),
			zap.String("chat_id", ev.ChatID.String()),
			zap.Error(err),
		)
	}
}

// Subscribe returns a stream of relay events. The stream closes when ctx
// is cancelled. Malformed payloads are logged and skipped.
func (r *RedisRelay) Subscribe(ctx context.Context) <-chan Event {
	sub := r.rdb.Subscribe(ctx, channel)
	out := make(chan Event)

	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("skip malformed relay event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
