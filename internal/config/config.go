package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultOrigin is the API origin used when neither the environment nor the
// config file provides one. Override at build time with:
// go build -ldflags "-X github.com/spendsense/operator-console/internal/config.DefaultOrigin=https://ops.example.com"
var DefaultOrigin = "http://localhost:8000"

const (
	// EnvAPIURL overrides the API origin
	EnvAPIURL = "SPENDSENSE_API_URL"
	// EnvToken supplies a bearer token without touching the token file
	EnvToken = "SPENDSENSE_TOKEN"
	// EnvEnvironment selects production (JSON) or development logging
	EnvEnvironment = "SPENDSENSE_ENV"
	// EnvLogLevel overrides the configured log level
	EnvLogLevel = "SPENDSENSE_LOG_LEVEL"
)

// Backoff strategies understood by the realtime layer.
const (
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// Config is the explicitly constructed console configuration. It is built once
// by the command layer and handed to every component that needs it.
type Config struct {
	APIOrigin   string         `yaml:"api_origin" mapstructure:"api_origin"`
	Environment string         `yaml:"environment" mapstructure:"environment"`
	LogLevel    string         `yaml:"log_level" mapstructure:"log_level"`
	HTTPTimeout time.Duration  `yaml:"http_timeout" mapstructure:"http_timeout"`
	Queue       QueueConfig    `yaml:"queue" mapstructure:"queue"`
	Cache       CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Realtime    RealtimeConfig `yaml:"realtime" mapstructure:"realtime"`

	// Token comes from SPENDSENSE_TOKEN only; it is never written to the config file.
	Token string `yaml:"-" mapstructure:"-"`
}

// QueueConfig holds recommendation queue defaults.
type QueueConfig struct {
	DefaultStatus string `yaml:"default_status" mapstructure:"default_status"`
	Limit         int    `yaml:"limit" mapstructure:"limit"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// RealtimeConfig holds the reconnection policy of every realtime channel.
type RealtimeConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	PingInterval  time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	Operator      ChannelPolicy `yaml:"operator" mapstructure:"operator"`
	Subscriptions ChannelPolicy `yaml:"subscriptions" mapstructure:"subscriptions"`
	Feedback      ChannelPolicy `yaml:"feedback" mapstructure:"feedback"`
}

// ChannelPolicy selects a backoff strategy for one channel.
type ChannelPolicy struct {
	Backoff   string        `yaml:"backoff" mapstructure:"backoff"`
	BaseDelay time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay,omitempty" mapstructure:"max_delay"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		APIOrigin:   DefaultOrigin,
		Environment: "development",
		LogLevel:    "info",
		HTTPTimeout: 30 * time.Second,
		Queue: QueueConfig{
			DefaultStatus: "pending",
			Limit:         100,
		},
		Cache: CacheConfig{TTL: 5 * time.Minute},
		Realtime: RealtimeConfig{
			MaxAttempts:  5,
			PingInterval: 30 * time.Second,
			Operator:     ChannelPolicy{Backoff: BackoffLinear, BaseDelay: 3 * time.Second},
			Subscriptions: ChannelPolicy{
				Backoff:   BackoffExponential,
				BaseDelay: time.Second,
				MaxDelay:  30 * time.Second,
			},
			Feedback: ChannelPolicy{Backoff: BackoffLinear, BaseDelay: 3 * time.Second},
		},
	}
}

// Paths locates the console's files on disk.
type Paths struct {
	Dir        string
	ConfigFile string
	TokenFile  string
	LogDir     string
}

// DefaultPaths resolves ~/.spendsense, honouring SUDO_USER so that running
// under sudo still uses the invoking user's home.
func DefaultPaths() (Paths, error) {
	var home string
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			home = u.HomeDir
		}
	}
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	return PathsIn(filepath.Join(home, ".spendsense")), nil
}

// PathsIn lays out the console files under dir.
func PathsIn(dir string) Paths {
	return Paths{
		Dir:        dir,
		ConfigFile: filepath.Join(dir, "config.yaml"),
		TokenFile:  filepath.Join(dir, "token"),
		LogDir:     filepath.Join(dir, "logs"),
	}
}

// Load reads the config file (creating it with defaults when missing), then
// applies .env and environment overrides.
func Load(paths Paths) (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	if err := os.MkdirAll(paths.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(paths.ConfigFile); errors.Is(err, os.ErrNotExist) {
		if err := Save(paths, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigFile(paths.ConfigFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	_ = v.BindEnv("api_origin", EnvAPIURL)
	_ = v.BindEnv("environment", EnvEnvironment)
	_ = v.BindEnv("log_level", EnvLogLevel)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Token = strings.TrimSpace(os.Getenv(EnvToken))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api_origin", d.APIOrigin)
	v.SetDefault("environment", d.Environment)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("http_timeout", d.HTTPTimeout)
	v.SetDefault("queue.default_status", d.Queue.DefaultStatus)
	v.SetDefault("queue.limit", d.Queue.Limit)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("realtime.max_attempts", d.Realtime.MaxAttempts)
	v.SetDefault("realtime.ping_interval", d.Realtime.PingInterval)
	v.SetDefault("realtime.operator.backoff", d.Realtime.Operator.Backoff)
	v.SetDefault("realtime.operator.base_delay", d.Realtime.Operator.BaseDelay)
	v.SetDefault("realtime.subscriptions.backoff", d.Realtime.Subscriptions.Backoff)
	v.SetDefault("realtime.subscriptions.base_delay", d.Realtime.Subscriptions.BaseDelay)
	v.SetDefault("realtime.subscriptions.max_delay", d.Realtime.Subscriptions.MaxDelay)
	v.SetDefault("realtime.feedback.backoff", d.Realtime.Feedback.Backoff)
	v.SetDefault("realtime.feedback.base_delay", d.Realtime.Feedback.BaseDelay)
}

// Save writes the configuration to disk with owner-only permissions.
func Save(paths Paths, cfg *Config) error {
	if err := os.MkdirAll(paths.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(paths.ConfigFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the values the rest of the console relies on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIOrigin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api_origin %q: must be an http(s) URL", c.APIOrigin)
	}
	if c.Realtime.MaxAttempts < 0 {
		return fmt.Errorf("invalid realtime.max_attempts %d", c.Realtime.MaxAttempts)
	}
	for name, p := range map[string]ChannelPolicy{
		"operator":      c.Realtime.Operator,
		"subscriptions": c.Realtime.Subscriptions,
		"feedback":      c.Realtime.Feedback,
	} {
		if p.Backoff != BackoffLinear && p.Backoff != BackoffExponential {
			return fmt.Errorf("invalid realtime.%s.backoff %q", name, p.Backoff)
		}
	}
	return nil
}

// IsProduction reports whether production logging should be used.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// APIBaseURL returns the REST base, e.g. "https://ops.example.com/api".
func (c *Config) APIBaseURL() string {
	return strings.TrimSuffix(c.APIOrigin, "/") + "/api"
}

// WebSocketURL builds a realtime endpoint URL on the API origin, switching
// http(s) to ws(s).
//
//	"https://ops.example.com" + "/ws/operator/recommendations" → "wss://ops.example.com/ws/operator/recommendations"
func (c *Config) WebSocketURL(path string) string {
	origin := strings.TrimSuffix(c.APIOrigin, "/")
	switch {
	case strings.HasPrefix(origin, "https://"):
		origin = "wss://" + origin[len("https://"):]
	case strings.HasPrefix(origin, "http://"):
		origin = "ws://" + origin[len("http://"):]
	}
	return origin + path
}
