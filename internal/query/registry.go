package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/gateway"
)

// Registry owns one cache client per browser session. It is created once at startup
// and handed to whoever needs a session's cache.
type Registry struct {
	mu           sync.Mutex
	clients      map[string]*Client
	disconnected *Client
	connector    gateway.Connector
	ctx          context.Context
	opts         ClientOptions
	logger       *zap.Logger
}

func NewRegistry(ctx context.Context, connector gateway.Connector, opts ClientOptions) *Registry {
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		clients:      make(map[string]*Client),
		disconnected: NewClient(ctx, nil, opts),
		connector:    connector,
		ctx:          ctx,
		opts:         opts,
		logger:       log,
	}
}

// ForSession returns the session's client bound to token. Without a token or
// connector the shared disconnected client is returned.
func (r *Registry) ForSession(sid, token string) *Client {
	if sid == "" || token == "" || r.connector == nil {
		return r.disconnected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[sid]; ok {
		if c.token == token {
			return c
		}
		c.Close()
	}

	c := NewClient(r.ctx, r.connector.Connect(token), r.opts)
	c.token = token
	r.clients[sid] = c
	return c
}

// Clear discards the session's cached data and background work.
func (r *Registry) Clear(sid string) {
	r.mu.Lock()
	c, ok := r.clients[sid]
	delete(r.clients, sid)
	r.mu.Unlock()

	if ok {
		c.Close()
	}
}

// SweepIdle closes clients unused for longer than maxIdle and returns how many were removed.
func (r *Registry) SweepIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}

	now := time.Now
	if r.opts.Now != nil {
		now = r.opts.Now
	}

	r.mu.Lock()
	var idle []*Client
	for sid, c := range r.clients {
		if now().Sub(c.LastUsed()) > maxIdle {
			idle = append(idle, c)
			delete(r.clients, sid)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
	if len(idle) > 0 {
		r.logger.Debug("swept idle query clients", zap.Int("count", len(idle)))
	}
	return len(idle)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close releases every session client.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
