package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/events"
)

type invalidation struct {
	TicketID string `json:"ticket_id"`
	Origin   string `json:"origin"`
	Reason   string `json:"reason,omitempty"`
}

// Invalidator drops stale tickets after commits and tells the other
// instances to evict their local copies.
type Invalidator struct {
	cache   *TicketCache
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

// NewInvalidator builds an invalidator. origin identifies this process so
// it can ignore its own broadcasts.
func NewInvalidator(cache *TicketCache, client *redis.Client, channel, origin string, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{cache: cache, client: client, channel: channel, origin: origin, logger: logger}
}

// RegisterHandlers subscribes to cache invalidation events.
func (i *Invalidator) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventCacheInvalidate, i.handle)
}

func (i *Invalidator) handle(ctx context.Context, event events.Event) error {
	if event.TicketID == "" {
		return nil
	}
	if err := i.cache.Delete(ctx, event.TicketID); err != nil {
		i.logger.Warn("cache delete failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	if i.client == nil || i.channel == "" {
		return nil
	}

	msg := invalidation{TicketID: event.TicketID, Origin: i.origin}
	if payload, ok := event.Payload.(events.CacheInvalidatePayload); ok {
		msg.Reason = payload.Reason
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return i.client.Publish(ctx, i.channel, raw).Err()
}

// Listen evicts local copies announced by other instances until ctx is done.
func (i *Invalidator) Listen(ctx context.Context) {
	if i.client == nil || i.channel == "" {
		return
	}
	pubsub := i.client.Subscribe(ctx, i.channel)
	defer pubsub.Close()

	i.logger.Info("listening for cache invalidations", zap.String("channel", i.channel))
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			i.apply(msg.Payload)
		}
	}
}

func (i *Invalidator) apply(raw string) {
	var msg invalidation
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		i.logger.Warn("invalid invalidation payload", zap.Error(err))
		return
	}
	if msg.TicketID == "" || msg.Origin == i.origin {
		return
	}
	i.cache.EvictLocal(msg.TicketID)
}
