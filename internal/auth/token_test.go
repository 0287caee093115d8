package auth

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"sub": "operator-1", "exp": exp.Unix()})

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.Subject)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(exp.Add(time.Second)))
}

func TestParseClaims_OpaqueToken(t *testing.T) {
	_, err := ParseClaims("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaims_NoExpiryNeverExpires(t *testing.T) {
	claims, err := ParseClaims(signedToken(t, jwt.MapClaims{"sub": "x"}))
	require.NoError(t, err)
	assert.False(t, claims.Expired(time.Now().Add(100*365*24*time.Hour)))
}

func TestStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store := NewStore(path, "", quietLogger())

	require.NoError(t, store.Load())
	assert.Empty(t, store.Token())

	require.NoError(t, store.Save("  abc  "))
	assert.Equal(t, "abc", store.Token())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded := NewStore(path, "", quietLogger())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, "abc", reloaded.Token())

	require.NoError(t, reloaded.Clear())
	assert.Empty(t, reloaded.Token())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine.
	require.NoError(t, reloaded.Clear())
}

func TestStore_SaveRejectsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token"), "", quietLogger())
	assert.ErrorIs(t, store.Save("   "), ErrInvalidToken)
}

func TestStore_EnvironmentTokenWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store := NewStore(path, "env-token", quietLogger())
	require.NoError(t, store.Save("file-token"))

	assert.Equal(t, "env-token", store.Token())
	assert.True(t, store.FromEnvironment())
}

func TestStore_ClaimsUnauthenticated(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token"), "", quietLogger())
	_, err := store.Claims()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestStore_WatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store := NewStore(path, "", quietLogger())
	require.NoError(t, store.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Watch(ctx, func() { changes.Add(1) })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("fresh-token\n"), 0600))

	assert.Eventually(t, func() bool {
		return store.Token() == "fresh-token" && changes.Load() > 0
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
