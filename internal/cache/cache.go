// Package cache keeps the last aggregated sprint list in the store with an
// expiry, so repeated loads inside the window skip the network entirely.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jra3/sprintdash/internal/aggregate"
	"github.com/jra3/sprintdash/internal/store"
)

type Cache struct {
	st  *store.Store
	ttl time.Duration
	now func() time.Time
	log *zap.Logger
}

type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = log }
}

func New(st *store.Store, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		st:  st,
		ttl: ttl,
		now: time.Now,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached sprint items if they are non-empty and unexpired.
// Malformed entries count as a miss.
func (c *Cache) Load(ctx context.Context) ([]aggregate.SprintItem, bool, error) {
	expires, ok, err := c.ExpiresAt(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	if !expires.After(c.now()) {
		c.log.Debug("cache expired", zap.Time("expires", expires))
		return nil, false, nil
	}

	var items []aggregate.SprintItem
	found, err := c.st.GetJSON(ctx, store.KeyTickets, &items)
	if found && err != nil {
		c.log.Debug("ignoring malformed cached tickets", zap.Error(err))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	return items, true, nil
}

// Fresh reports whether the cached data is still inside its TTL window.
func (c *Cache) Fresh(ctx context.Context) bool {
	expires, ok, err := c.ExpiresAt(ctx)
	return err == nil && ok && expires.After(c.now())
}

// Raw returns the per-board sprint records of the last fetch, regardless of
// expiry. Malformed or missing data yields nil.
func (c *Cache) Raw(ctx context.Context) ([]aggregate.BoardSprint, error) {
	var raw []aggregate.BoardSprint
	found, err := c.st.GetJSON(ctx, store.KeySprintObj, &raw)
	if found && err != nil {
		c.log.Debug("ignoring malformed cached sprint records", zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Save replaces the cached records and items and starts a new expiry window.
func (c *Cache) Save(ctx context.Context, raw []aggregate.BoardSprint, items []aggregate.SprintItem) error {
	expires := c.now().Add(c.ttl)
	return c.st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.SetJSON(ctx, store.KeySprintObj, raw); err != nil {
			return err
		}
		if err := tx.SetJSON(ctx, store.KeyTickets, items); err != nil {
			return err
		}
		return tx.SetJSON(ctx, store.KeyTTL, expires.UnixMilli())
	})
}

// Clear drops everything the cache owns.
func (c *Cache) Clear(ctx context.Context) error {
	return c.st.Delete(ctx, store.KeyTickets, store.KeySprintObj, store.KeyTTL)
}

// ExpiresAt returns the expiry of the cached data. ok is false when there is
// no readable expiry.
func (c *Cache) ExpiresAt(ctx context.Context) (time.Time, bool, error) {
	var ms int64
	found, err := c.st.GetJSON(ctx, store.KeyTTL, &ms)
	if found && err != nil {
		c.log.Debug("ignoring malformed cache ttl", zap.Error(err))
		return time.Time{}, false, nil
	}
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}
