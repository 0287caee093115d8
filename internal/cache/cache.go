// Package cache is the console's query cache: results keyed by operation and
// parameters, deduplicated fetches, invalidation and in-place patches.
package cache

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/spendsense/operator-console/internal/metrics"
)

// Key identifies a query: an operation name plus canonical parameters, e.g.
// "operator.recommendations?limit=100&status=pending". Everything before the
// "?" is the key's family.
type Key string

// NewKey renders op and params canonically. Empty values are omitted and
// parameters are sorted by name.
func NewKey(op string, params map[string]string) Key {
	names := make([]string, 0, len(params))
	for name, value := range params {
		if value != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return Key(op)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(op)
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[name]))
	}
	return Key(b.String())
}

// Family returns the operation part of the key.
func (k Key) Family() string {
	s := string(k)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}

// Param returns one parameter of the key.
func (k Key) Param(name string) string {
	s := string(k)
	i := strings.IndexByte(s, '?')
	if i < 0 {
		return ""
	}
	values, err := url.ParseQuery(s[i+1:])
	if err != nil {
		return ""
	}
	return values.Get(name)
}

// Cache stores query results. It is safe for concurrent use.
type Cache struct {
	store   *gocache.Cache
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  logrus.FieldLogger

	mutex  sync.Mutex
	epochs map[string]uint64
	subs   map[int]subscription
	nextID int
	patch  sync.Mutex
}

type subscription struct {
	family string
	ch     chan Key
}

// Option customizes a Cache.
type Option func(*Cache)

// WithMetrics counts hits, misses and updates.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the cache logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &Cache{
		store:  gocache.New(ttl, 2*ttl),
		logger: logrus.StandardLogger(),
		epochs: make(map[string]uint64),
		subs:   make(map[int]subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch serves key from the cache, or runs fn once for all concurrent callers
// asking for the same key and stores the result. A result whose family was
// invalidated while fn ran is returned but not stored, and callers arriving
// after the invalidation start a fresh flight instead of joining the old one.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	family := key.Family()
	if v, ok := c.store.Get(string(key)); ok {
		if typed, ok := v.(T); ok {
			c.metrics.CacheLookup(family, "hit")
			return typed, nil
		}
		c.store.Delete(string(key))
	}
	c.metrics.CacheLookup(family, "miss")

	epoch := c.epoch(family)
	flight := fmt.Sprintf("%s#%d", key, epoch)
	v, err, shared := c.group.Do(flight, func() (any, error) {
		result, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if c.epoch(family) == epoch {
			c.store.SetDefault(string(key), result)
		} else {
			c.logger.WithField("key", string(key)).Debug("discarding result of invalidated fetch")
		}
		return result, nil
	})
	if shared {
		c.metrics.CacheLookup(family, "shared")
	}
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: %s holds %T", key, v)
	}
	return typed, nil
}

// Peek returns the cached value for key without fetching.
func Peek[T any](c *Cache, key Key) (T, bool) {
	v, ok := c.store.Get(string(key))
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Patch rewrites a cached value in place. fn returns the new value and
// whether anything changed. It reports whether an entry was changed.
func Patch[T any](c *Cache, key Key, fn func(T) (T, bool)) bool {
	c.patch.Lock()
	v, ok := c.store.Get(string(key))
	if !ok {
		c.patch.Unlock()
		return false
	}
	typed, ok := v.(T)
	if !ok {
		c.patch.Unlock()
		return false
	}
	updated, changed := fn(typed)
	if changed {
		c.store.SetDefault(string(key), updated)
	}
	c.patch.Unlock()

	if changed {
		c.metrics.CacheUpdate(key.Family(), "patch")
		c.notify(key)
	}
	return changed
}

// Invalidate drops one key so the next read refetches it.
func (c *Cache) Invalidate(key Key) {
	c.store.Delete(string(key))
	c.bump(key.Family())
	c.metrics.CacheUpdate(key.Family(), "invalidate")
	c.notify(key)
}

// InvalidateFamily drops every key of a family. Subscribers receive the bare
// family as the changed key.
func (c *Cache) InvalidateFamily(family string) {
	for _, key := range c.Keys(family) {
		c.store.Delete(string(key))
	}
	c.bump(family)
	c.metrics.CacheUpdate(family, "invalidate")
	c.notify(Key(family))
}

// Keys lists the cached keys of a family.
func (c *Cache) Keys(family string) []Key {
	var keys []Key
	for k := range c.store.Items() {
		if Key(k).Family() == family {
			keys = append(keys, Key(k))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Flush drops everything.
func (c *Cache) Flush() {
	c.store.Flush()
	c.mutex.Lock()
	for family := range c.epochs {
		c.epochs[family]++
	}
	c.mutex.Unlock()
}

// Subscribe returns change notifications for a family ("" for all). A slow
// subscriber misses notifications rather than blocking writers. cancel
// closes the channel.
func (c *Cache) Subscribe(family string) (<-chan Key, func()) {
	ch := make(chan Key, 16)

	c.mutex.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = subscription{family: family, ch: ch}
	c.mutex.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mutex.Lock()
			delete(c.subs, id)
			c.mutex.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Cache) notify(key Key) {
	family := key.Family()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, sub := range c.subs {
		if sub.family != "" && sub.family != family {
			continue
		}
		select {
		case sub.ch <- key:
		default:
			c.logger.WithField("key", string(key)).Debug("cache subscriber full, dropping notification")
		}
	}
}

func (c *Cache) epoch(family string) uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.epochs[family]
}

func (c *Cache) bump(family string) {
	c.mutex.Lock()
	c.epochs[family]++
	c.mutex.Unlock()
}
