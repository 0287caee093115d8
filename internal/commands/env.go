// Package commands implements the spendsense command line.
package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spendsense/operator-console/internal/api"
	"github.com/spendsense/operator-console/internal/auth"
	"github.com/spendsense/operator-console/internal/cache"
	"github.com/spendsense/operator-console/internal/config"
	"github.com/spendsense/operator-console/internal/logging"
	"github.com/spendsense/operator-console/internal/metrics"
	"github.com/spendsense/operator-console/internal/review"
)

var (
	// AppVersion is set by main from the build-time version.
	AppVersion = "0.0.0-dev"

	configDir string
	verbose   bool
)

// Styles for command output
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("37")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))
)

// env is everything a command needs, built once from the config files.
type env struct {
	paths   config.Paths
	cfg     *config.Config
	logger  *logrus.Logger
	tokens  *auth.Store
	metrics *metrics.Metrics
}

// loadEnv reads config and token and builds the logger. Logs go to logOut.
func loadEnv(logOut io.Writer) (*env, error) {
	var paths config.Paths
	if configDir != "" {
		paths = config.PathsIn(configDir)
	} else {
		var err error
		if paths, err = config.DefaultPaths(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(paths)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger := logging.New(cfg.IsProduction(), level, logOut)

	tokens := auth.NewStore(paths.TokenFile, cfg.Token, logger)
	if err := tokens.Load(); err != nil {
		return nil, err
	}

	return &env{
		paths:   paths,
		cfg:     cfg,
		logger:  logger,
		tokens:  tokens,
		metrics: metrics.New(),
	}, nil
}

// loadAuthedEnv is loadEnv for commands that call the API.
func loadAuthedEnv(cmd *cobra.Command) (*env, error) {
	e, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if e.tokens.Token() == "" {
		return nil, fmt.Errorf("%w: run 'spendsense login --token <token>' or set %s",
			auth.ErrNotAuthenticated, config.EnvToken)
	}
	return e, nil
}

func (e *env) client() *api.Client {
	return api.NewClient(e.cfg, e.tokens,
		api.WithLogger(e.logger),
		api.WithMetrics(e.metrics))
}

func (e *env) service() *review.Service {
	c := cache.New(e.cfg.Cache.TTL,
		cache.WithMetrics(e.metrics),
		cache.WithLogger(e.logger.WithField("component", "cache")))
	return review.NewService(e.client(), c, e.logger)
}

// explain turns API errors into operator-facing messages.
func explain(err error) error {
	switch {
	case api.IsConsentRequired(err):
		return fmt.Errorf("consent required: the user has not granted consent (%w)", err)
	case api.IsNotFound(err):
		return fmt.Errorf("not found: %w", err)
	}
	return err
}
