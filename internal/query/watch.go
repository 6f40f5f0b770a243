package query

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type watcher struct {
	cancel context.CancelFunc
	kickCh chan struct{}
}

func (w *watcher) kick() {
	select {
	case w.kickCh <- struct{}{}:
	default:
	}
}

func (w *watcher) stop() {
	w.cancel()
}

// Watching reports whether key is currently polled in the background.
func (c *Client) Watching(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.watchers[key]
	return ok
}

func (c *Client) ensureWatch(key Key, interval time.Duration, refetch func(context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if _, ok := c.watchers[key]; ok {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	w := &watcher{cancel: cancel, kickCh: make(chan struct{}, 1)}
	c.watchers[key] = w
	c.mu.Unlock()

	go c.watch(ctx, key, interval, w, refetch)
}

func (c *Client) watch(ctx context.Context, key Key, interval time.Duration, w *watcher, refetch func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer c.dropWatcher(key, w)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.kickCh:
		}

		if c.idle(key) {
			c.logger.Debug("stop idle query watcher", zap.String("key", key.String()))
			return
		}
		refetch(ctx)
	}
}

func (c *Client) idle(key Key) bool {
	if c.watchIdle <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return true
	}
	return c.now().Sub(e.lastRead) > c.watchIdle
}

func (c *Client) dropWatcher(key Key, w *watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watchers[key] == w {
		delete(c.watchers, key)
	}
	w.cancel()
}
