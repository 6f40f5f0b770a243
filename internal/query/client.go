// Package query caches backend reads per session, deduplicates concurrent fetches,
// polls selected keys and invalidates keys after successful mutations.
package query

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/caffeinepub/connect-dating/internal/gateway"
)

type ClientOptions struct {
	// WatchIdle stops a polling watcher when its key was not read for this long.
	WatchIdle time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

type Client struct {
	mu        sync.Mutex
	backend   gateway.Backend
	token     string
	entries   map[Key]*entry
	watchers  map[Key]*watcher
	group     singleflight.Group
	ctx       context.Context
	cancel    context.CancelFunc
	watchIdle time.Duration
	logger    *zap.Logger
	now       func() time.Time
	lastUsed  time.Time
	closed    bool
}

type entry struct {
	data       any
	hasData    bool
	fetched    bool
	err        error
	updatedAt  time.Time
	lastRead   time.Time
	stale      bool
	generation uint64
	inflight   int
}

// NewClient binds a cache to backend. A nil backend yields a disconnected client:
// reads return empty states and mutations fail with gateway.ErrNoConnection.
func NewClient(parent context.Context, backend gateway.Backend, opts ClientOptions) *Client {
	if parent == nil {
		parent = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(parent)
	return &Client{
		backend:   backend,
		entries:   make(map[Key]*entry),
		watchers:  make(map[Key]*watcher),
		ctx:       ctx,
		cancel:    cancel,
		watchIdle: opts.WatchIdle,
		logger:    log,
		now:       now,
		lastUsed:  now(),
	}
}

func (c *Client) Connected() bool {
	return c != nil && c.backend != nil
}

// Invalidate marks keys stale. In-flight fetches for them are discarded on arrival.
func (c *Client) Invalidate(keys ...Key) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			c.invalidateLocked(key, e)
		}
	}
}

// InvalidateNames marks every key in the named groups stale.
func (c *Client) InvalidateNames(names ...string) {
	if c == nil || len(names) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		for _, name := range names {
			if key.Name == name {
				c.invalidateLocked(key, e)
				break
			}
		}
	}
}

func (c *Client) invalidateLocked(key Key, e *entry) {
	e.stale = true
	e.generation++
	if w, ok := c.watchers[key]; ok {
		w.kick()
	}
}

// Clear drops every cached entry and stops all watchers. The client stays usable.
func (c *Client) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, w := range c.watchers {
		w.stop()
		delete(c.watchers, key)
	}
	c.entries = make(map[Key]*entry)
}

// Close clears the cache and releases the client's background work.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.Clear()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

func (c *Client) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Fetch returns the cached state for key, fetching it first when it is missing or stale.
// Concurrent callers for the same key share one backend call.
func Fetch[T any](ctx context.Context, c *Client, key Key, opts Options, fn func(context.Context, gateway.Backend) (T, error)) State[T] {
	if !c.Connected() {
		return State[T]{}
	}

	fresh := c.touch(key, opts.RefetchInterval)
	if opts.RefetchInterval > 0 {
		c.ensureWatch(key, opts.RefetchInterval, func(wctx context.Context) {
			refresh(wctx, c, key, fn)
		})
	}
	if !fresh {
		refresh(ctx, c, key, fn)
	}

	return Peek[T](c, key)
}

// Peek returns the cached state for key without fetching.
func Peek[T any](c *Client, key Key) State[T] {
	if c == nil {
		return State[T]{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return State[T]{}
	}

	state := State[T]{
		IsFetched: e.fetched,
		IsLoading: e.inflight > 0 && !e.hasData,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
	}
	if e.hasData {
		if v, ok := e.data.(T); ok {
			state.Data = v
			state.HasData = true
		}
	}
	return state
}

// Mutate performs one backend write. On success the named key groups are invalidated;
// on failure the cache is left untouched.
func Mutate[T any](ctx context.Context, c *Client, fn func(context.Context, gateway.Backend) (T, error), invalidates ...string) (T, error) {
	var zero T
	if !c.Connected() {
		return zero, gateway.ErrNoConnection
	}

	c.mu.Lock()
	c.lastUsed = c.now()
	backend := c.backend
	c.mu.Unlock()

	v, err := fn(ctx, backend)
	if err != nil {
		return zero, err
	}

	c.InvalidateNames(invalidates...)
	return v, nil
}

func (c *Client) touch(key Key, interval time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.lastUsed = now
	e := c.entryLocked(key)
	e.lastRead = now

	if !e.fetched || e.stale || e.err != nil {
		return false
	}
	if interval > 0 && now.Sub(e.updatedAt) >= interval {
		return false
	}
	return true
}

func (c *Client) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

func refresh[T any](ctx context.Context, c *Client, key Key, fn func(context.Context, gateway.Backend) (T, error)) {
	c.mu.Lock()
	e := c.entryLocked(key)
	gen := e.generation
	backend := c.backend
	c.mu.Unlock()

	flight := key.String() + "#" + strconv.FormatUint(gen, 10)
	_, _, _ = c.group.Do(flight, func() (any, error) {
		c.begin(e)
		v, err := fn(ctx, backend)
		c.commit(key, e, gen, v, err)
		return nil, nil
	})
}

func (c *Client) begin(e *entry) {
	c.mu.Lock()
	e.inflight++
	c.mu.Unlock()
}

func (c *Client) commit(key Key, e *entry, gen uint64, v any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.inflight--

	if c.entries[key] != e || e.generation != gen {
		c.logger.Debug("discard superseded query result", zap.String("key", key.String()))
		return
	}
	if errors.Is(err, gateway.ErrNoConnection) || errors.Is(err, context.Canceled) {
		return
	}

	e.generation++
	e.fetched = true
	e.stale = false
	e.updatedAt = c.now()
	if err != nil {
		e.err = err
		c.logger.Warn("query fetch failed", zap.String("key", key.String()), zap.Error(err))
		return
	}
	e.err = nil
	e.data = v
	e.hasData = true
}
