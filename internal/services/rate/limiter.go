package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Action string

const (
	ActionLike    Action = "likes"
	ActionMessage Action = "messages"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// Limits caps actions per identity. Zero disables a window.
type Limits struct {
	LikesPerMinute    int
	LikesPer10Seconds int
	MessagesPerMinute int
}

type window struct {
	name string
	size time.Duration
	max  int
}

type Limiter struct {
	store   WindowStore
	windows map[Action][]window
}

func NewLimiter(store WindowStore, limits Limits) *Limiter {
	windows := map[Action][]window{}
	add := func(action Action, name string, size time.Duration, max int) {
		if max > 0 {
			windows[action] = append(windows[action], window{name: name, size: size, max: max})
		}
	}
	add(ActionLike, "min", time.Minute, limits.LikesPerMinute)
	add(ActionLike, "10s", 10*time.Second, limits.LikesPer10Seconds)
	add(ActionMessage, "min", time.Minute, limits.MessagesPerMinute)

	return &Limiter{store: store, windows: windows}
}

// Enabled reports whether any window limits action.
func (l *Limiter) Enabled(action Action) bool {
	return l != nil && len(l.windows[action]) > 0
}

// Allow counts one action and reports whether it fits every window. When it does not,
// the returned value is the number of seconds until the tightest window resets.
func (l *Limiter) Allow(ctx context.Context, action Action, identity string) (int64, bool, error) {
	if strings.TrimSpace(identity) == "" {
		return 0, false, fmt.Errorf("invalid identity")
	}
	if !l.Enabled(action) {
		return 0, true, nil
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	for _, w := range l.windows[action] {
		count, ttl, err := l.store.IncrementWindow(ctx, windowKey(action, w.name, identity), w.size)
		if err != nil {
			return 0, false, err
		}
		if count > int64(w.max) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}
	return 0, true, nil
}

// RetryAfter reports how long identity must wait before action is allowed again.
func (l *Limiter) RetryAfter(ctx context.Context, action Action, identity string) (int64, error) {
	if strings.TrimSpace(identity) == "" {
		return 0, fmt.Errorf("invalid identity")
	}
	if !l.Enabled(action) {
		return 0, nil
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	for _, w := range l.windows[action] {
		count, ttl, err := l.store.WindowState(ctx, windowKey(action, w.name, identity))
		if err != nil {
			return 0, err
		}
		if count >= int64(w.max) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}
	return retryAfterSec, nil
}

func windowKey(action Action, window, identity string) string {
	return "rate:" + string(action) + ":" + window + ":" + identity
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
