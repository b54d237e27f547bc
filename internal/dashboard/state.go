package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/store"
)

// Views the dashboard can reopen.
const (
	TabTickets = "tickets"
	TabPoints  = "points"
)

// Alert severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
	SeveritySuccess = "success"
)

type Alert struct {
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// State is the application state shared by the pipeline and its front ends:
// the connection config, the last active view and pending alerts. All
// updates go through its methods.
type State struct {
	mu     sync.RWMutex
	st     *store.Store
	env    config.EnvOverrides
	cfg    config.JiraConfig
	tab    string
	alerts []Alert
	log    *zap.Logger
}

// LoadState reads the persisted config and active view. A malformed stored
// config is logged and replaced by an empty one.
func LoadState(ctx context.Context, st *store.Store, env config.EnvOverrides, log *zap.Logger) (*State, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &State{st: st, env: env, tab: TabTickets, log: log}

	var cfg config.JiraConfig
	found, err := st.GetJSON(ctx, store.KeyJiraConfig, &cfg)
	switch {
	case found && err != nil:
		log.Warn("stored jira config is unreadable, starting empty", zap.Error(err))
	case err != nil:
		return nil, fmt.Errorf("load jira config: %w", err)
	default:
		s.cfg = cfg
	}

	tab, ok, err := st.Get(ctx, store.KeyActiveTab)
	if err != nil {
		return nil, fmt.Errorf("load active tab: %w", err)
	}
	if ok && validTab(tab) {
		s.tab = tab
	}
	return s, nil
}

// Config returns the effective connection config: the stored one with
// environment overrides applied.
func (s *State) Config() config.JiraConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.WithEnv(s.env)
}

// StoredConfig returns the persisted config without environment overrides.
func (s *State) StoredConfig() config.JiraConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// SetConfig validates and persists cfg, replacing the current config.
func (s *State) SetConfig(ctx context.Context, cfg config.JiraConfig) error {
	return s.UpdateConfig(ctx, func(config.JiraConfig) (config.JiraConfig, error) {
		return cfg, nil
	})
}

// UpdateConfig applies fn to a copy of the stored config and persists the
// result. The stored config is untouched if fn or validation fails.
func (s *State) UpdateConfig(ctx context.Context, fn func(config.JiraConfig) (config.JiraConfig, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.cfg.Clone())
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.st.SetJSON(ctx, store.KeyJiraConfig, next); err != nil {
		return err
	}
	s.cfg = next.Clone()
	s.log.Debug("jira config updated", zap.Int("boards", len(next.Boards)))
	return nil
}

// ClearConfig forgets the stored config.
func (s *State) ClearConfig(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.Delete(ctx, store.KeyJiraConfig); err != nil {
		return err
	}
	s.cfg = config.JiraConfig{}
	return nil
}

func (s *State) ActiveTab() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tab
}

// SetActiveTab records the last opened view.
func (s *State) SetActiveTab(ctx context.Context, tab string) error {
	if !validTab(tab) {
		return fmt.Errorf("unknown view %q (want %s or %s)", tab, TabTickets, TabPoints)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.Set(ctx, store.KeyActiveTab, tab); err != nil {
		return err
	}
	s.tab = tab
	return nil
}

func validTab(tab string) bool {
	return tab == TabTickets || tab == TabPoints
}

func (s *State) AddAlert(severity, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, Alert{Severity: severity, Message: message, At: time.Now()})
}

// RemoveAlert dismisses the alert at index.
func (s *State) RemoveAlert(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.alerts) {
		return fmt.Errorf("alert index %d out of range [0, %d)", index, len(s.alerts))
	}
	next := make([]Alert, 0, len(s.alerts)-1)
	next = append(next, s.alerts[:index]...)
	s.alerts = append(next, s.alerts[index+1:]...)
	return nil
}

// Alerts returns a copy of the pending alerts, oldest first.
func (s *State) Alerts() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Alert(nil), s.alerts...)
}
