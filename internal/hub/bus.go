package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/metrics"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

const (
	busNamespace      = "canvas:"
	presenceKeyPrefix = "canvas:presence:"
	presenceTTL       = 24 * time.Hour
)

const (
	kindBroadcast = "broadcast"
	kindPresence  = "presence"
)

// Notice is a change announced by another instance. A nil Envelope means the
// room's presence changed and must be re-read.
type Notice struct {
	Slug     string
	Envelope *protocol.Envelope
}

// Bus shares broadcasts and presence between hub instances.
type Bus interface {
	Publish(ctx context.Context, slug string, env protocol.Envelope) error
	Track(ctx context.Context, slug, key string, meta domain.PeerMeta) error
	Untrack(ctx context.Context, slug, key string) error
	Presence(ctx context.Context, slug string) (protocol.PresenceState, error)
	Listen(ctx context.Context, fn func(Notice)) error
}

type busMessage struct {
	Instance string             `json:"instance"`
	Kind     string             `json:"kind"`
	Envelope *protocol.Envelope `json:"envelope,omitempty"`
}

// RedisBus relays broadcasts over pub/sub on canvas:room:<slug> and keeps
// presence in the hash canvas:presence:<slug>.
type RedisBus struct {
	rdb      *redis.Client
	instance string
	log      *slog.Logger
}

func NewRedisBus(rdb *redis.Client, log *slog.Logger) *RedisBus {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{
		rdb:      rdb,
		instance: uuid.NewString(),
		log:      log,
	}
}

func roomChannel(slug string) string { return busNamespace + domain.ChannelName(slug) }
func presenceKey(slug string) string { return presenceKeyPrefix + slug }

func (b *RedisBus) Publish(ctx context.Context, slug string, env protocol.Envelope) error {
	return b.publish(ctx, slug, busMessage{Instance: b.instance, Kind: kindBroadcast, Envelope: &env})
}

func (b *RedisBus) Track(ctx context.Context, slug, key string, meta domain.PeerMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	timer := prometheus.NewTimer(metrics.RedisLatency)
	_, err = b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, presenceKey(slug), key, raw)
		pipe.Expire(ctx, presenceKey(slug), presenceTTL)
		return nil
	})
	timer.ObserveDuration()
	if err != nil {
		return fmt.Errorf("track presence: %w", err)
	}
	return b.publish(ctx, slug, busMessage{Instance: b.instance, Kind: kindPresence})
}

func (b *RedisBus) Untrack(ctx context.Context, slug, key string) error {
	timer := prometheus.NewTimer(metrics.RedisLatency)
	err := b.rdb.HDel(ctx, presenceKey(slug), key).Err()
	timer.ObserveDuration()
	if err != nil {
		return fmt.Errorf("untrack presence: %w", err)
	}
	return b.publish(ctx, slug, busMessage{Instance: b.instance, Kind: kindPresence})
}

func (b *RedisBus) Presence(ctx context.Context, slug string) (protocol.PresenceState, error) {
	timer := prometheus.NewTimer(metrics.RedisLatency)
	fields, err := b.rdb.HGetAll(ctx, presenceKey(slug)).Result()
	timer.ObserveDuration()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}

	state := make(protocol.PresenceState, len(fields))
	for key, raw := range fields {
		var meta domain.PeerMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			b.log.Warn("skipping malformed presence entry", slog.String("slug", slug), slog.String("key", key), sl.Err(err))
			continue
		}
		state[key] = []domain.PeerMeta{meta}
	}
	return state, nil
}

// Listen subscribes to every room channel and hands notices from other
// instances to fn until ctx is done.
func (b *RedisBus) Listen(ctx context.Context, fn func(Notice)) error {
	pubsub := b.rdb.PSubscribe(ctx, roomChannel("*"))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case redisMsg, ok := <-ch:
			if !ok {
				return nil
			}
			var msg busMessage
			if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
				b.log.Debug("skipping malformed bus message", sl.Err(err))
				continue
			}
			if msg.Instance == b.instance {
				continue
			}
			slug := strings.TrimPrefix(redisMsg.Channel, roomChannel(""))
			switch msg.Kind {
			case kindBroadcast:
				if msg.Envelope != nil {
					fn(Notice{Slug: slug, Envelope: msg.Envelope})
				}
			case kindPresence:
				fn(Notice{Slug: slug})
			}
		}
	}
}

func (b *RedisBus) publish(ctx context.Context, slug string, msg busMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	timer := prometheus.NewTimer(metrics.RedisLatency)
	defer timer.ObserveDuration()
	if err := b.rdb.Publish(ctx, roomChannel(slug), string(data)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Kind, err)
	}
	return nil
}
