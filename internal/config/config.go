package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStoryPointField is the custom field Jira Cloud uses for story points
// on the instances this tool was first written against.
const DefaultStoryPointField = "customfield_10076"

type Config struct {
	Cache  CacheConfig  `yaml:"cache"`
	Store  StoreConfig  `yaml:"store"`
	HTTP   HTTPConfig   `yaml:"http"`
	Jira   JiraSettings `yaml:"jira"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`

	// Env holds connection overrides taken from the environment.
	// They are applied on top of the stored JiraConfig and never persisted.
	Env EnvOverrides `yaml:"-"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Rate    float64       `yaml:"rate"`
	Burst   int           `yaml:"burst"`
}

type JiraSettings struct {
	StoryPointField string `yaml:"story_point_field"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type EnvOverrides struct {
	BaseURL string
	Email   string
	APIKey  string
}

func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
			Rate:    10,
			Burst:   20,
		},
		Jira: JiraSettings{
			StoryPointField: DefaultStoryPointField,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadFile loads configuration from an explicit path, still honouring
// environment overrides.
func LoadFile(path string) (*Config, error) {
	return load(path, os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment lookup function.
// This allows tests to provide isolated environment values.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	return load(getConfigPathWithEnv(getenv), getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if level := getenv("SPRINTDASH_LOG_LEVEL"); level != "" {
		cfg.Log.Level = strings.ToLower(level)
	}
	cfg.Env = EnvOverrides{
		BaseURL: getenv("SPRINTDASH_BASE_URL"),
		Email:   getenv("SPRINTDASH_EMAIL"),
		APIKey:  getenv("SPRINTDASH_API_KEY"),
	}

	if cfg.Jira.StoryPointField == "" {
		cfg.Jira.StoryPointField = DefaultStoryPointField
	}
	if cfg.Cache.TTL <= 0 {
		return nil, fmt.Errorf("cache.ttl must be positive, got %s", cfg.Cache.TTL)
	}

	return cfg, nil
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sprintdash", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sprintdash", "config.yaml")
}

// DefaultStorePath returns the default location of the state database.
func DefaultStorePath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("HOME")
	}
	return filepath.Join(configDir, "sprintdash", "state.db")
}
