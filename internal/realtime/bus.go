package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/UkralStul/blogsphere/internal/logger"
	"github.com/UkralStul/blogsphere/internal/metrics"
)

// Bus carries events between server instances.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	StartForwarder(ctx context.Context, onEvent func(e Event)) error
	Close() error
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to addr and uses channel for all events.
func NewRedisBus(log *logger.Logger, addr, channel string) (Bus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "blogsphere.comments"
	}
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
	return &redisBus{
		log:     log.With("service", "RedisCommentBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(e Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					b.log.Warn("bad comment event payload", "error", err)
					continue
				}
				onEvent(e)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}

// Relay publishes through the bus so every instance, this one included,
// delivers the event via its forwarder. Without a bus, or when the bus
// rejects an event, delivery is local only.
type Relay struct {
	hub *Hub
	bus Bus
	log *logger.Logger
}

func NewRelay(hub *Hub, bus Bus, log *logger.Logger) *Relay {
	return &Relay{hub: hub, bus: bus, log: log.With("service", "CommentRelay")}
}

// Start wires the bus forwarder into the hub.
func (r *Relay) Start(ctx context.Context) error {
	if r.bus == nil {
		return nil
	}
	return r.bus.StartForwarder(ctx, func(e Event) { r.hub.Publish(ctx, e) })
}

func (r *Relay) Publish(ctx context.Context, e Event) {
	metrics.CommentEvent(string(e.Type))
	if r.bus == nil {
		r.hub.Publish(ctx, e)
		return
	}
	if err := r.bus.Publish(ctx, e); err != nil {
		r.log.Warn("bus publish failed, delivering locally", "post_id", e.PostID, "error", err)
		r.hub.Publish(ctx, e)
	}
}
