// Package dashboard runs the fetch and aggregate pipeline against the
// application state and the cache, and serves filtered views of the result.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jra3/sprintdash/internal/aggregate"
	"github.com/jra3/sprintdash/internal/cache"
	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/fetch"
	"github.com/jra3/sprintdash/internal/jira"
)

var (
	// ErrConfigMissing means the connection config lacks required fields.
	// Front ends send the user to the settings instead of showing an error.
	ErrConfigMissing = errors.New("jira connection is not configured")

	// ErrStaleFetch means a newer load or refresh started before this one
	// finished; its results were discarded.
	ErrStaleFetch = errors.New("fetch superseded by a newer request")
)

// Gateway is what the dashboard needs from a Jira client.
type Gateway interface {
	fetch.Gateway
	ListBoards(ctx context.Context) ([]jira.Board, error)
}

// GatewayFactory builds a gateway for the effective connection config.
type GatewayFactory func(cfg config.JiraConfig) (Gateway, error)

type Options struct {
	State           *State
	Cache           *cache.Cache
	Gateway         GatewayFactory
	StoryPointField string
	Logger          *zap.Logger
}

type Dashboard struct {
	state      *State
	cache      *cache.Cache
	newGateway GatewayFactory
	tr         *aggregate.Transformer
	log        *zap.Logger

	gen atomic.Uint64

	mu       sync.RWMutex
	items    []aggregate.SprintItem
	loaded   bool
	loadedAt time.Time
}

func New(opts Options) *Dashboard {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dashboard{
		state:      opts.State,
		cache:      opts.Cache,
		newGateway: opts.Gateway,
		tr:         aggregate.NewTransformer(opts.StoryPointField),
		log:        log,
	}
}

// State returns the application state handle.
func (d *Dashboard) State() *State {
	return d.state
}

// Result describes a committed load or refresh.
type Result struct {
	Items      []aggregate.SprintItem
	FromCache  bool
	ExpiresAt  time.Time
	Generation uint64
}

// Load serves the cached sprint list when it is fresh and fetches otherwise.
func (d *Dashboard) Load(ctx context.Context) (Result, error) {
	cfg, err := d.config()
	if err != nil {
		return Result{}, err
	}
	gen := d.gen.Add(1)

	items, hit, err := d.cache.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read cache: %w", err)
	}
	if !hit {
		return d.run(ctx, gen, cfg, nil)
	}

	expires, _, _ := d.cache.ExpiresAt(ctx)
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen.Load() {
		return Result{}, ErrStaleFetch
	}
	d.commitLocked(items)
	d.log.Info("loaded sprints from cache",
		zap.Uint64("generation", gen),
		zap.Int("sprints", len(items)),
		zap.Time("expires", expires))
	d.state.AddAlert(SeverityInfo, fmt.Sprintf("Showing cached data, refreshed automatically %s", humanize.Time(expires)))
	return Result{Items: items, FromCache: true, ExpiresAt: expires, Generation: gen}, nil
}

// Ensure keeps the committed sprint list current: nothing happens while it is
// loaded and the cache window is open, otherwise it runs Load.
func (d *Dashboard) Ensure(ctx context.Context) error {
	d.mu.RLock()
	loaded := d.loaded
	d.mu.RUnlock()
	if loaded && d.cache.Fresh(ctx) {
		return nil
	}
	_, err := d.Load(ctx)
	return err
}

// Refresh fetches regardless of the cache. With board names given only
// those boards are fetched; cached data of the other boards is kept.
func (d *Dashboard) Refresh(ctx context.Context, boardNames []string) (Result, error) {
	cfg, err := d.config()
	if err != nil {
		return Result{}, err
	}
	return d.run(ctx, d.gen.Add(1), cfg, boardNames)
}

func (d *Dashboard) config() (config.JiraConfig, error) {
	cfg := d.state.Config()
	if missing := cfg.Missing(); len(missing) > 0 {
		return cfg, fmt.Errorf("%w: missing %s", ErrConfigMissing, strings.Join(missing, ", "))
	}
	return cfg, nil
}

func (d *Dashboard) run(ctx context.Context, gen uint64, cfg config.JiraConfig, boardNames []string) (Result, error) {
	log := d.log.With(zap.String("run", uuid.NewString()), zap.Uint64("generation", gen))

	boards := cfg.EnabledBoards()
	scoped := len(boardNames) > 0
	if scoped {
		boards = lo.Filter(boards, func(b config.Board, _ int) bool {
			return lo.Contains(boardNames, b.Name)
		})
	}
	log.Info("fetching sprints", zap.Int("boards", len(boards)), zap.Bool("scoped", scoped))

	start := time.Now()
	gw, err := d.newGateway(cfg)
	if err != nil {
		return Result{}, err
	}
	fetched, err := fetch.New(gw, log).Fetch(ctx, boards)
	if err != nil {
		d.fail(gen, log, err)
		return Result{}, err
	}

	raw := d.tr.BoardSprints(fetched)
	if scoped {
		cached, err := d.cache.Raw(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("read cache: %w", err)
		}
		raw = mergeRaw(cfg.Boards, cached, raw, boards)
	}
	items := aggregate.OrderSprints(aggregate.MergeSprints(raw), cfg.BoardKeys(), cfg.SprintStartWord)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen.Load() {
		log.Info("discarding superseded fetch", zap.Uint64("latest", d.gen.Load()))
		return Result{}, ErrStaleFetch
	}
	if err := d.cache.Save(ctx, raw, items); err != nil {
		return Result{}, fmt.Errorf("write cache: %w", err)
	}
	d.commitLocked(items)
	expires, _, _ := d.cache.ExpiresAt(ctx)

	log.Info("fetched sprints",
		zap.Int("sprints", len(items)),
		zap.Int("records", len(raw)),
		zap.Duration("took", time.Since(start)))
	return Result{Items: items, ExpiresAt: expires, Generation: gen}, nil
}

func (d *Dashboard) fail(gen uint64, log *zap.Logger, err error) {
	if gen != d.gen.Load() {
		log.Debug("superseded fetch failed", zap.Error(err))
		return
	}
	log.Error("fetch failed", zap.Error(err))
	d.state.AddAlert(SeverityError, err.Error())
}

func (d *Dashboard) commitLocked(items []aggregate.SprintItem) {
	d.items = items
	d.loaded = true
	d.loadedAt = time.Now()
}

// mergeRaw replaces the cached records of the refetched boards with fresh
// ones and orders the result by the boards' configured position.
func mergeRaw(all []config.Board, cached, fresh []aggregate.BoardSprint, refetched []config.Board) []aggregate.BoardSprint {
	ids := lo.Map(refetched, func(b config.Board, _ int) string { return b.ID })
	merged := lo.Filter(cached, func(r aggregate.BoardSprint, _ int) bool {
		return !lo.Contains(ids, r.BoardID)
	})
	merged = append(merged, fresh...)

	pos := make(map[string]int, len(all))
	for i, b := range all {
		pos[b.ID] = i
	}
	rank := func(id string) int {
		if p, ok := pos[id]; ok {
			return p
		}
		return len(all)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return rank(merged[i].BoardID) < rank(merged[j].BoardID)
	})
	return merged
}

// Items returns the committed sprint list, unfiltered.
func (d *Dashboard) Items() ([]aggregate.SprintItem, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.items, d.loaded
}

// View is a filtered projection of the committed sprint list.
type View struct {
	Items    []aggregate.SprintItem `json:"items"`
	Sprints  []string               `json:"sprints"`
	Matrix   aggregate.Matrix       `json:"matrix"`
	Rows     []aggregate.Row        `json:"rows"`
	Options  aggregate.Options      `json:"options"`
	Filter   aggregate.Filter       `json:"filter"`
	LoadedAt time.Time              `json:"loadedAt"`
}

// View applies filter to the committed sprint list. The story-point matrix
// counts every ticket of the selected sprints and boards, restricted to the
// selected users' rows.
func (d *Dashboard) View(filter aggregate.Filter) View {
	d.mu.RLock()
	items, loadedAt := d.items, d.loadedAt
	d.mu.RUnlock()

	scope := aggregate.Filter{Board: filter.Board, Sprint: filter.Sprint}.Apply(items)
	matrix := aggregate.GroupByAssignee(scope)
	if len(filter.User) > 0 {
		for user := range matrix {
			if !lo.Contains(filter.User, user) {
				delete(matrix, user)
			}
		}
	}
	sprints := lo.Map(scope, func(item aggregate.SprintItem, _ int) string { return item.Key })

	return View{
		Items:    filter.Apply(items),
		Sprints:  sprints,
		Matrix:   matrix,
		Rows:     matrix.Rows(sprints),
		Options:  aggregate.FilterOptions(scope, d.state.Config().Boards),
		Filter:   filter,
		LoadedAt: loadedAt,
	}
}

// RemoteBoards lists the scrum boards visible to the account as config boards.
func (d *Dashboard) RemoteBoards(ctx context.Context) ([]config.Board, error) {
	cfg, err := d.config()
	if err != nil {
		return nil, err
	}
	gw, err := d.newGateway(cfg)
	if err != nil {
		return nil, err
	}
	boards, err := gw.ListBoards(ctx)
	if err != nil {
		return nil, err
	}
	return jira.ScrumBoards(boards), nil
}

// LoadRemoteBoards replaces the tracked boards with every remote scrum board.
func (d *Dashboard) LoadRemoteBoards(ctx context.Context) ([]config.Board, error) {
	boards, err := d.RemoteBoards(ctx)
	if err != nil {
		return nil, err
	}
	err = d.state.UpdateConfig(ctx, func(c config.JiraConfig) (config.JiraConfig, error) {
		c.Boards = boards
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return boards, nil
}

// ClearCache drops the cached data; the next Load fetches.
func (d *Dashboard) ClearCache(ctx context.Context) error {
	return d.cache.Clear(ctx)
}
