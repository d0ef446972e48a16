package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/domain"
)

const (
	defaultTTL      = 5 * time.Minute
	defaultLocalTTL = 30 * time.Second
)

// Options tune the ticket cache.
type Options struct {
	KeyPrefix string
	TTL       time.Duration
	// LocalTTL bounds how long this process trusts its in-memory copy when
	// an invalidation message is lost.
	LocalTTL time.Duration
	Now      func() time.Time
}

type localEntry struct {
	ticket    *domain.Ticket
	expiresAt time.Time
}

// TicketCache is a two-tier read-through cache: a per-process map in front
// of a shared Redis copy. A nil Redis client leaves only the local tier.
type TicketCache struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	localTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu    sync.RWMutex
	local map[string]localEntry
}

// NewTicketCache builds the cache.
func NewTicketCache(client *redis.Client, opts Options, logger *zap.Logger) *TicketCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = defaultLocalTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TicketCache{
		client:   client,
		prefix:   opts.KeyPrefix,
		ttl:      opts.TTL,
		localTTL: opts.LocalTTL,
		now:      opts.Now,
		logger:   logger,
		local:    make(map[string]localEntry),
	}
}

func (c *TicketCache) key(id string) string {
	if c.prefix == "" {
		return "ticket:" + id
	}
	return c.prefix + ":ticket:" + id
}

// Get returns a copy of the cached ticket.
func (c *TicketCache) Get(ctx context.Context, id string) (*domain.Ticket, bool) {
	c.mu.RLock()
	entry, ok := c.local[id]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.ticket.Clone(), true
	}

	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("ticket cache read failed", zap.String("ticket_id", id), zap.Error(err))
		}
		return nil, false
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		c.logger.Warn("discarding corrupt cache entry", zap.String("ticket_id", id), zap.Error(err))
		return nil, false
	}
	c.storeLocal(&ticket)
	return ticket.Clone(), true
}

// Set stores a copy of ticket in both tiers.
func (c *TicketCache) Set(ctx context.Context, ticket *domain.Ticket) {
	if ticket == nil {
		return
	}
	c.storeLocal(ticket)
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(ticket)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(ticket.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("ticket cache write failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

// Delete drops the ticket from both tiers.
func (c *TicketCache) Delete(ctx context.Context, id string) error {
	c.EvictLocal(id)
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(id)).Err()
}

// EvictLocal drops only the in-process copy.
func (c *TicketCache) EvictLocal(id string) {
	c.mu.Lock()
	delete(c.local, id)
	c.mu.Unlock()
}

func (c *TicketCache) storeLocal(ticket *domain.Ticket) {
	c.mu.Lock()
	c.local[ticket.ID] = localEntry{ticket: ticket.Clone(), expiresAt: c.now().Add(c.localTTL)}
	c.mu.Unlock()
}
