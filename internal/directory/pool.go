package directory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"makosite/internal/models"
	"makosite/internal/session"
)

// DefaultIdleTimeout matches the session middleware's idle timeout: an admin
// cache unused for this long belongs to a session that has expired.
const DefaultIdleTimeout = 30 * time.Minute

// Pool hands out caches to request handlers. Every admin gets a cache bound
// to their own Broadcaster; everyone else shares one public cache whose
// identity is always nil.
type Pool struct {
	store  Store
	opts   []Option
	logger *zap.Logger

	public *Cache

	idleTimeout time.Duration
	now         func() time.Time

	mu     sync.Mutex
	admins map[string]*poolEntry
	closed bool
}

type poolEntry struct {
	cache    *Cache
	oracle   *session.Broadcaster
	lastUsed time.Time
}

// NewPool creates a Pool. opts are applied to every cache it creates.
func NewPool(store Store, logger *zap.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]Option{WithLogger(logger)}, opts...)
	return &Pool{
		store:  store,
		opts:   opts,
		logger: logger,
		public: New(store, session.NewBroadcaster(nil), opts...),
		admins: make(map[string]*poolEntry),

		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
}

// IdentityKey is the key a user's cache is stored under: the user id, or the
// email when the provider gave no id.
func IdentityKey(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.ID != "" {
		return u.ID
	}
	return u.Email
}

// Public returns the shared anonymous cache.
func (p *Pool) Public() *Cache {
	return p.public
}

// For returns the cache for user. Non-admins get the public cache. For an
// admin the latest identity is published to their oracle, so a changed role
// or profile reaches the cache.
func (p *Pool) For(user *models.User) *Cache {
	key := IdentityKey(user)
	if !user.IsAdmin() || key == "" {
		// Demoted since the last request.
		p.SignOut(key)
		return p.public
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return p.public
	}
	if e, ok := p.admins[key]; ok {
		e.lastUsed = p.now()
		if !sameUser(e.oracle.Current(), user) {
			e.oracle.Publish(user)
		}
		return e.cache
	}

	oracle := session.NewBroadcaster(user)
	e := &poolEntry{cache: New(p.store, oracle, p.opts...), oracle: oracle, lastUsed: p.now()}
	p.admins[key] = e
	p.logger.Debug("admin directory cache created", zap.String("user", key))
	return e.cache
}

// SignOut publishes a nil identity to the cache stored under key and closes it.
func (p *Pool) SignOut(key string) {
	p.mu.Lock()
	e, ok := p.admins[key]
	delete(p.admins, key)
	p.mu.Unlock()
	if !ok {
		return
	}
	e.oracle.Publish(nil)
	e.cache.Close()
	p.logger.Debug("admin directory cache closed", zap.String("user", key))
}

// EvictIdle closes every admin cache not handed out for the idle timeout and
// returns how many were closed.
func (p *Pool) EvictIdle() int {
	cutoff := p.now().Add(-p.idleTimeout)

	p.mu.Lock()
	var idle []*poolEntry
	for key, e := range p.admins {
		if e.lastUsed.After(cutoff) {
			continue
		}
		idle = append(idle, e)
		delete(p.admins, key)
	}
	p.mu.Unlock()

	for _, e := range idle {
		e.cache.Close()
	}
	if len(idle) > 0 {
		p.logger.Debug("idle admin directory caches closed", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (p *Pool) RunEviction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.EvictIdle()
		}
	}
}

// Len returns the number of admin caches.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.admins)
}

// Close closes every cache.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	entries := p.admins
	p.admins = make(map[string]*poolEntry)
	p.mu.Unlock()

	for _, e := range entries {
		e.cache.Close()
	}
	p.public.Close()
}

func sameUser(a, b *models.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
