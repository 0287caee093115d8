package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Common errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidToken     = errors.New("invalid token format")
)

// Claims holds the token claims the console displays. The signature is never
// verified here; the API does that.
type Claims struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp claim
	IssuedAt  time.Time
}

// Expired reports whether the token is past its expiry. Tokens without an
// expiry never expire from the console's point of view.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseClaims extracts subject and expiry from a JWT without verifying it.
// Opaque (non-JWT) tokens return ErrInvalidToken.
func ParseClaims(token string) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{}
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := parsed.Claims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	return claims, nil
}

// Store is the locally persisted bearer token. A token supplied through the
// environment takes precedence over the file and is never written to disk.
type Store struct {
	path     string
	envToken string
	logger   logrus.FieldLogger

	mu    sync.RWMutex
	token string
}

// NewStore creates a token store backed by path.
func NewStore(path, envToken string, logger logrus.FieldLogger) *Store {
	return &Store{
		path:     path,
		envToken: strings.TrimSpace(envToken),
		logger:   logger.WithField("component", "token-store"),
	}
}

// Load reads the token file. A missing file leaves the store empty.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.set("")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}
	s.set(strings.TrimSpace(string(data)))
	return nil
}

func (s *Store) set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Token returns the bearer token, or "" when the console is unauthenticated.
func (s *Store) Token() string {
	if s.envToken != "" {
		return s.envToken
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// FromEnvironment reports whether the active token came from SPENDSENSE_TOKEN.
func (s *Store) FromEnvironment() bool {
	return s.envToken != ""
}

// Save persists a new token with owner-only permissions.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	s.set(token)
	return nil
}

// Clear removes the persisted token.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	s.set("")
	return nil
}

// Claims parses the active token.
func (s *Store) Claims() (*Claims, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return ParseClaims(token)
}

// Watch reloads the token whenever the file changes (for example after
// `spendsense login` in another terminal) and calls onChange afterwards.
// It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create token watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and os.WriteFile may replace the file.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if err := s.Load(); err != nil {
				s.logger.WithError(err).Warn("Failed to reload token")
				continue
			}
			s.logger.WithField("op", event.Op.String()).Info("Token reloaded")
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WithError(err).Warn("Token watcher error")
		}
	}
}
