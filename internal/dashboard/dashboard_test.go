package dashboard

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jra3/sprintdash/internal/aggregate"
	"github.com/jra3/sprintdash/internal/cache"
	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/jira"
	"github.com/jra3/sprintdash/internal/store"
	"github.com/jra3/sprintdash/internal/testutil"
)

type fixture struct {
	mock  *testutil.MockJiraServer
	st    *store.Store
	state *State
	cache *cache.Cache
	dash  *Dashboard
}

func testConfig(baseURL string) config.JiraConfig {
	return config.JiraConfig{
		Email:           "alice@example.test",
		APIKey:          "secret",
		BaseURL:         baseURL,
		SprintStartWord: "Sprint ",
		Boards: []config.Board{
			{ID: "1", Key: "ALPHA", Name: "Alpha", Enabled: true},
			{ID: "2", Key: "BETA", Name: "Beta", Enabled: true},
		},
	}
}

func jiraFactory(cfg config.JiraConfig) (Gateway, error) {
	return jira.NewClient(jira.Options{
		BaseURL: cfg.BaseURL,
		Email:   cfg.Email,
		APIKey:  cfg.APIKey,
		Timeout: 5 * time.Second,
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := testutil.NewMockJiraServer()
	t.Cleanup(mock.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	state, err := LoadState(ctx, st, config.EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if err := state.SetConfig(ctx, testConfig(mock.URL())); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	c := cache.New(st, 5*time.Minute)
	f := &fixture{mock: mock, st: st, state: state, cache: c}
	f.dash = New(Options{State: state, Cache: c, Gateway: jiraFactory})
	f.seed()
	return f
}

func (f *fixture) seed() {
	f.mock.SetResponse(testutil.SprintsPath("1"), testutil.SprintsResponse(
		testutil.FixtureSprint(10, "ALPHA Sprint 0", jira.SprintClosed),
		testutil.FixtureSprint(12, "ALPHA Sprint 2", jira.SprintFuture),
		testutil.FixtureSprint(11, "ALPHA Sprint 1", jira.SprintActive),
	))
	f.mock.SetResponse(testutil.SprintsPath("2"), testutil.SprintsResponse(
		testutil.FixtureSprint(21, "BETA Sprint 1", jira.SprintActive),
	))
	f.mock.SetResponse(testutil.IssuesPath("1", 11), testutil.IssuesResponse(
		testutil.FixtureIssue("ALPHA-1", "Story", "In Development", "Alice", 3,
			testutil.FixtureSubtaskStub("ALPHA-2", "To Do")),
		testutil.FixtureIssue("ALPHA-2", "Sub-task", "In Testing", "Bob", 2),
		testutil.FixtureIssue("ALPHA-3", "Bug", "To Do", "Carol", 1),
	))
	f.mock.SetResponse(testutil.IssuesPath("1", 12), testutil.IssuesResponse())
	f.mock.SetResponse(testutil.IssuesPath("2", 21), testutil.IssuesResponse(
		testutil.FixtureIssue("BETA-1", "Task", "Done", "Alice", 5),
	))
}

func itemKeys(items []aggregate.SprintItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Key)
	}
	return out
}

func TestLoadRequiresConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.state.SetConfig(ctx, config.JiraConfig{BaseURL: f.mock.URL()}); err != nil {
		t.Fatal(err)
	}

	_, err := f.dash.Load(ctx)
	if !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("Load error = %v, want ErrConfigMissing", err)
	}
	if len(f.mock.Calls()) != 0 {
		t.Error("no request should be made without credentials")
	}
}

func TestLoadFetchesAndOrders(t *testing.T) {
	f := newFixture(t)

	res, err := f.dash.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.FromCache {
		t.Error("first load should not come from cache")
	}
	want := []string{"ALPHA Sprint 1", "ALPHA Sprint 2", "BETA Sprint 1"}
	if diff := cmp.Diff(want, itemKeys(res.Items)); diff != "" {
		t.Errorf("sprint order mismatch (-want +got):\n%s", diff)
	}

	alpha := res.Items[0]
	if len(alpha.Issues) != 2 || alpha.Issues[0].Key != "ALPHA-1" || alpha.Issues[1].Key != "ALPHA-3" {
		t.Fatalf("ALPHA Sprint 1 issues = %+v", alpha.Issues)
	}
	sub := alpha.Issues[0].Subtasks
	if len(sub) != 1 || sub[0].Assignee != "Bob" || sub[0].Status != "In Testing" {
		t.Errorf("subtask should be resolved from the full issue, got %+v", sub)
	}
	if f.mock.CallCount(testutil.IssuesPath("1", 10)) != 0 {
		t.Error("closed sprints should not be fetched")
	}
}

func TestLoadServesCacheWithoutNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.dash.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	before := len(f.mock.Calls())

	second, err := f.dash.Load(ctx)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if !second.FromCache {
		t.Error("second load should be a cache hit")
	}
	if after := len(f.mock.Calls()); after != before {
		t.Errorf("cache hit made %d requests", after-before)
	}
	if diff := cmp.Diff(first.Items, second.Items); diff != "" {
		t.Errorf("cached items mismatch (-want +got):\n%s", diff)
	}

	var info bool
	for _, a := range f.state.Alerts() {
		info = info || a.Severity == SeverityInfo
	}
	if !info {
		t.Error("cache hit should add an info alert")
	}
}

func TestLoadCacheSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.dash.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	before := len(f.mock.Calls())

	state, err := LoadState(ctx, f.st, config.EnvOverrides{}, nil)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	fresh := New(Options{State: state, Cache: cache.New(f.st, 5*time.Minute), Gateway: jiraFactory})
	res, err := fresh.Load(ctx)
	if err != nil || !res.FromCache {
		t.Fatalf("Load after restart = %v, %v; want cache hit", res.FromCache, err)
	}
	if len(f.mock.Calls()) != before {
		t.Error("restart should be served from the persisted cache")
	}
}

func TestRefreshScopedToBoardKeepsOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.dash.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	f.mock.SetResponse(testutil.IssuesPath("2", 21), testutil.IssuesResponse(
		testutil.FixtureIssue("BETA-1", "Task", "In Development", "Alice", 5),
		testutil.FixtureIssue("BETA-2", "Story", "To Do", "Dan", 8),
	))
	alphaCalls := f.mock.CallCount(testutil.SprintsPath("1"))

	res, err := f.dash.Refresh(ctx, []string{"Beta"})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if f.mock.CallCount(testutil.SprintsPath("1")) != alphaCalls {
		t.Error("scoped refresh should not fetch other boards")
	}

	want := []string{"ALPHA Sprint 1", "ALPHA Sprint 2", "BETA Sprint 1"}
	if diff := cmp.Diff(want, itemKeys(res.Items)); diff != "" {
		t.Fatalf("sprint order mismatch (-want +got):\n%s", diff)
	}
	beta := res.Items[2]
	if len(beta.Issues) != 2 || beta.Issues[0].Key != "BETA-2" {
		t.Errorf("BETA Sprint 1 should hold fresh issues, got %+v", beta.Issues)
	}
	if len(res.Items[0].Issues) != 2 {
		t.Errorf("ALPHA data should be kept from the cache, got %+v", res.Items[0].Issues)
	}

	raw, _ := f.cache.Raw(ctx)
	var boards []string
	for _, r := range raw {
		boards = append(boards, r.BoardID)
	}
	if diff := cmp.Diff([]string{"1", "1", "2"}, boards); diff != "" {
		t.Errorf("raw records should stay in board order (-want +got):\n%s", diff)
	}
}

func TestRefreshTransportErrorAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.SetError(testutil.IssuesPath("2", 21), http.StatusInternalServerError, "boom")

	_, err := f.dash.Refresh(ctx, nil)
	if err == nil {
		t.Fatal("Refresh should fail")
	}
	if items, loaded := f.dash.Items(); loaded || items != nil {
		t.Error("a failed fetch must not commit partial results")
	}
	if _, ok, _ := f.cache.Load(ctx); ok {
		t.Error("a failed fetch must not write the cache")
	}

	alerts := f.state.Alerts()
	if len(alerts) != 1 || alerts[0].Severity != SeverityError {
		t.Errorf("alerts = %+v, want one error", alerts)
	}
}

// gatedGateway blocks every call until release is closed.
type gatedGateway struct {
	Gateway
	release chan struct{}
	started chan struct{}
}

func (g *gatedGateway) ListSprints(ctx context.Context, boardID string) ([]jira.Sprint, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	return g.Gateway.ListSprints(ctx, boardID)
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	real, err := jiraFactory(f.state.Config())
	if err != nil {
		t.Fatal(err)
	}
	slow := &gatedGateway{Gateway: real, release: make(chan struct{}), started: make(chan struct{}, 1)}
	calls := 0
	f.dash.newGateway = func(config.JiraConfig) (Gateway, error) {
		calls++
		if calls == 1 {
			return slow, nil
		}
		return real, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.dash.Refresh(ctx, nil)
		done <- err
	}()
	<-slow.started

	f.mock.SetResponse(testutil.IssuesPath("2", 21), testutil.IssuesResponse(
		testutil.FixtureIssue("BETA-9", "Task", "To Do", "Alice", 1),
	))
	latest, err := f.dash.Refresh(ctx, nil)
	if err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}

	close(slow.release)
	if err := <-done; !errors.Is(err, ErrStaleFetch) {
		t.Fatalf("first Refresh error = %v, want ErrStaleFetch", err)
	}

	items, _ := f.dash.Items()
	if diff := cmp.Diff(latest.Items, items); diff != "" {
		t.Errorf("committed items should come from the latest fetch (-want +got):\n%s", diff)
	}
	if got := items[len(items)-1].Issues[0].Key; got != "BETA-9" {
		t.Errorf("BETA issue = %s, want BETA-9", got)
	}
}

func TestViewFiltersAndMatrix(t *testing.T) {
	f := newFixture(t)
	if _, err := f.dash.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	v := f.dash.View(aggregate.Filter{})
	wantRows := []aggregate.Row{
		{User: "Bob", Points: []float64{2, 0, 0}, Total: 2},
		{User: "Carol", Points: []float64{1, 0, 0}, Total: 1},
	}
	if diff := cmp.Diff(wantRows, v.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Alpha", "Beta"}, v.Options.Boards); diff != "" {
		t.Errorf("board options mismatch (-want +got):\n%s", diff)
	}

	v = f.dash.View(aggregate.Filter{User: []string{"Bob"}, Board: []string{"Alpha"}})
	if diff := cmp.Diff([]string{"ALPHA Sprint 1", "ALPHA Sprint 2"}, itemKeys(v.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if len(v.Items[0].Issues) != 1 || v.Items[0].Issues[0].Key != "ALPHA-1" {
		t.Errorf("user filter should keep the parent of Bob's subtask, got %+v", v.Items[0].Issues)
	}
	if len(v.Rows) != 1 || v.Rows[0].User != "Bob" {
		t.Errorf("rows = %+v, want only Bob", v.Rows)
	}
	if diff := cmp.Diff([]string{"Bob", "Carol"}, v.Options.Users); diff != "" {
		t.Errorf("user options should ignore the user filter (-want +got):\n%s", diff)
	}
}

func TestLoadRemoteBoards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.SetResponse(testutil.BoardsPath, testutil.BoardsResponse(
		testutil.FixtureBoard(7, "OPS", "Ops kanban", "kanban"),
		testutil.FixtureBoard(8, "GAMMA", "Gamma team", "scrum"),
	))

	boards, err := f.dash.LoadRemoteBoards(ctx)
	if err != nil {
		t.Fatalf("LoadRemoteBoards failed: %v", err)
	}
	want := []config.Board{{ID: "8", Key: "GAMMA", Name: "Gamma team", Enabled: true}}
	if diff := cmp.Diff(want, boards); diff != "" {
		t.Errorf("boards mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, f.state.StoredConfig().Boards); diff != "" {
		t.Errorf("stored boards mismatch (-want +got):\n%s", diff)
	}
}
