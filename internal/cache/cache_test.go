package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jra3/sprintdash/internal/aggregate"
	"github.com/jra3/sprintdash/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestCache(t *testing.T) (*Cache, *store.Store, *clock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clk := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(st, 5*time.Minute, WithClock(clk.Now)), st, clk
}

func sample() ([]aggregate.BoardSprint, []aggregate.SprintItem) {
	raw := []aggregate.BoardSprint{
		{Sprint: "ALPHA Sprint 1", BoardID: "1", BoardTitle: "Alpha", Issues: []aggregate.Ticket{{Key: "A-1"}}},
	}
	return raw, aggregate.MergeSprints(raw)
}

func TestCacheGetSet(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	raw, items := sample()

	if err := c.Save(ctx, raw, items); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok, err := c.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if diff := cmp.Diff(items, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	gotRaw, err := c.Raw(ctx)
	if err != nil {
		t.Fatalf("Raw failed: %v", err)
	}
	if diff := cmp.Diff(raw, gotRaw); diff != "" {
		t.Errorf("Raw() mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheExpiration(t *testing.T) {
	c, _, clk := newTestCache(t)
	ctx := context.Background()
	raw, items := sample()

	if err := c.Save(ctx, raw, items); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	expires, ok, _ := c.ExpiresAt(ctx)
	if !ok || !expires.Equal(clk.t.Add(5*time.Minute)) {
		t.Errorf("ExpiresAt() = %v, %v", expires, ok)
	}

	clk.t = clk.t.Add(4*time.Minute + 59*time.Second)
	if _, ok, _ := c.Load(ctx); !ok {
		t.Error("expected a hit just before expiry")
	}

	clk.t = clk.t.Add(time.Second)
	if _, ok, _ := c.Load(ctx); ok {
		t.Error("expected a miss at the expiry instant")
	}

	if gotRaw, _ := c.Raw(ctx); len(gotRaw) != 1 {
		t.Error("raw records should outlive the expiry window")
	}
}

func TestCacheFresh(t *testing.T) {
	c, _, clk := newTestCache(t)
	ctx := context.Background()

	if c.Fresh(ctx) {
		t.Error("empty cache should not be fresh")
	}
	raw, items := sample()
	if err := c.Save(ctx, raw, items); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !c.Fresh(ctx) {
		t.Error("cache should be fresh right after Save")
	}
	clk.t = clk.t.Add(5 * time.Minute)
	if c.Fresh(ctx) {
		t.Error("cache should not be fresh at the expiry instant")
	}
}

func TestCacheMalformedIsMiss(t *testing.T) {
	c, st, clk := newTestCache(t)
	ctx := context.Background()

	future := clk.t.Add(time.Hour).UnixMilli()
	if err := st.SetJSON(ctx, store.KeyTTL, future); err != nil {
		t.Fatal(err)
	}
	if err := st.Set(ctx, store.KeyTickets, "undefined"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Load(ctx); ok || err != nil {
		t.Errorf("malformed tickets: Load = %v, %v; want miss", ok, err)
	}

	if err := st.Set(ctx, store.KeyTTL, "soon"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Load(ctx); ok || err != nil {
		t.Errorf("malformed ttl: Load = %v, %v; want miss", ok, err)
	}

	if err := st.Set(ctx, store.KeySprintObj, "{"); err != nil {
		t.Fatal(err)
	}
	if raw, err := c.Raw(ctx); raw != nil || err != nil {
		t.Errorf("malformed raw: Raw = %v, %v; want nil", raw, err)
	}
}

func TestCacheEmptyListIsMiss(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Save(ctx, nil, []aggregate.SprintItem{}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, ok, _ := c.Load(ctx); ok {
		t.Error("an empty cached list should be a miss")
	}
}

func TestCacheClear(t *testing.T) {
	c, st, _ := newTestCache(t)
	ctx := context.Background()
	raw, items := sample()

	c.Save(ctx, raw, items)
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	for _, k := range []string{store.KeyTickets, store.KeySprintObj, store.KeyTTL} {
		if _, ok, _ := st.Get(ctx, k); ok {
			t.Errorf("key %s should be cleared", k)
		}
	}
	if _, ok, _ := c.Load(ctx); ok {
		t.Error("Load after Clear should miss")
	}
}
