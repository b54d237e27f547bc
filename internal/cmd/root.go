package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jra3/sprintdash/internal/cache"
	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/dashboard"
	"github.com/jra3/sprintdash/internal/jira"
	"github.com/jra3/sprintdash/internal/logging"
	"github.com/jra3/sprintdash/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "sprintdash",
	Short: "Jira sprint dashboard",
	Long: `sprintdash shows the open sprints of your Jira scrum boards as ticket trees
and as an assignee by sprint story-point table. Without a subcommand it reopens
the view you used last.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return showView(ctx, a, cmd.OutOrStdout(), cmd.ErrOrStderr(), a.state.ActiveTab(), viewFlags{})
		})
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default: ~/.config/sprintdash/config.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")
	rootCmd.SilenceUsage = true
}

// app holds everything a command needs, opened once per invocation.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
	state *dashboard.State
	cache *cache.Cache
	dash  *dashboard.Dashboard
	stats *jira.Stats
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newApp opens the state database and wires the dashboard. statsInterval
// enables periodic Jira call summaries when positive.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, statsInterval time.Duration) (*app, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	state, err := dashboard.LoadState(ctx, st, cfg.Env, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		store: st,
		state: state,
		cache: cache.New(st, cfg.Cache.TTL, cache.WithLogger(log)),
		stats: jira.NewStats(log, statsInterval),
	}
	a.dash = dashboard.New(dashboard.Options{
		State:           state,
		Cache:           a.cache,
		Gateway:         a.gateway,
		StoryPointField: cfg.Jira.StoryPointField,
		Logger:          log,
	})
	return a, nil
}

func (a *app) gateway(c config.JiraConfig) (dashboard.Gateway, error) {
	return jira.NewClient(jira.Options{
		BaseURL: c.BaseURL,
		Email:   c.Email,
		APIKey:  c.APIKey,
		Timeout: a.cfg.HTTP.Timeout,
		Rate:    a.cfg.HTTP.Rate,
		Burst:   a.cfg.HTTP.Burst,
		Logger:  a.log,
		Stats:   a.stats,
	})
}

func (a *app) Close() {
	a.stats.Close()
	if n := a.stats.HourlyCount(); n > 0 {
		a.log.Debug(a.stats.Summary())
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing state database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// withApp opens the app for a single command run.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, log, 0)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
