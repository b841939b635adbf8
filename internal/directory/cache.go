// Package directory keeps an in-memory, correctly ordered and
// authorization-scoped mirror of the remote link collection.
//
// Mutations are admin-only and are applied to the cache only after the
// store confirms them. Store calls run outside the lock; the sort order
// (priority desc, createdAt desc) is restored whenever a result is applied,
// so the order in which concurrent calls complete never matters.
package directory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"makosite/internal/apperr"
	"makosite/internal/metrics"
	"makosite/internal/models"
	"makosite/internal/session"
	"makosite/internal/validation"
)

// CreatorFallback is stamped as creator when the admin identity has no id.
const CreatorFallback = "admin"

// Cache is the link directory for one identity scope.
type Cache struct {
	store  Store
	oracle session.Oracle
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	links    []models.Link
	user     *models.User
	inFlight int
	watchers map[int]chan []models.Link
	nextID   int
	closed   bool

	unsubscribe func()
	stop        context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock replaces time.Now for timestamp stamping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache and subscribes it to identity changes from oracle.
// Call Close to unsubscribe.
func New(store Store, oracle session.Oracle, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		oracle:   oracle,
		logger:   zap.NewNop(),
		now:      time.Now,
		watchers: make(map[int]chan []models.Link),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.user = oracle.Current()
	events, unsubscribe := oracle.Subscribe()
	ctx, stop := context.WithCancel(context.Background())
	c.unsubscribe = unsubscribe
	c.stop = stop

	go c.watchIdentity(ctx, events)
	return c
}

// Close unsubscribes from the oracle and closes every Watch channel.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.stop()
		c.unsubscribe()
		<-c.done

		c.mu.Lock()
		c.closed = true
		for id, ch := range c.watchers {
			delete(c.watchers, id)
			close(ch)
		}
		c.mu.Unlock()
	})
}

func (c *Cache) watchIdentity(ctx context.Context, events <-chan *models.User) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-events:
			if !ok {
				return
			}
			c.setIdentity(ctx, u)
		}
	}
}

// setIdentity records a new identity. Losing the admin role drops inactive
// links immediately; any change of role refetches with the new scope.
func (c *Cache) setIdentity(ctx context.Context, u *models.User) {
	c.mu.Lock()
	wasAdmin := c.user.IsAdmin()
	c.user = u
	isAdmin := u.IsAdmin()
	if wasAdmin && !isAdmin {
		c.links = activeOnly(c.links)
	}
	c.notifyLocked()
	c.mu.Unlock()

	if wasAdmin != isAdmin {
		if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("refresh after identity change failed", zap.Error(err))
		}
	}
}

// Links returns a copy of the cached links in directory order.
func (c *Cache) Links() []models.Link {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visibleLocked()
}

// Loading reports whether a refresh is in flight.
func (c *Cache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inFlight > 0
}

// IsAdmin reports whether the current identity may mutate links.
func (c *Cache) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.IsAdmin()
}

// Refresh replaces the cache with the store's links for the caller's scope.
// On failure the last known-good links are kept and the error is returned.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.inFlight++
	admin := c.user.IsAdmin()
	c.mu.Unlock()

	links, err := c.store.List(ctx, ScopeFilter(admin), DirectorySort)

	c.mu.Lock()
	c.inFlight--
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("failed to fetch links", zap.Bool("admin", admin), zap.Error(err))
		return fmt.Errorf("refresh links: %w", err)
	}
	if !c.user.IsAdmin() {
		links = activeOnly(links)
	}
	sortLinks(links)
	c.links = links
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

// requireAdmin is the first step of every mutation.
func (c *Cache) requireAdmin() (*models.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.user.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	u := *c.user
	return &u, nil
}

// Create stores a new link and inserts the stored record into the cache.
func (c *Cache) Create(ctx context.Context, in models.LinkInput) (link *models.Link, err error) {
	defer func() { metrics.RecordLinkMutation("create", err) }()

	user, err := c.requireAdmin()
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateLinkInput(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}

	now := c.now().UTC()
	creator := user.ID
	if creator == "" {
		creator = CreatorFallback
	}
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	priority := models.DefaultPriority
	if in.Priority != nil {
		priority = *in.Priority
	}

	created, err := c.store.Create(ctx, models.Link{
		Title:       in.Title,
		URL:         in.URL,
		Type:        in.Type,
		Description: in.Description,
		Icon:        in.Icon,
		IsActive:    isActive,
		Priority:    priority,
		Creator:     creator,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		c.logger.Error("failed to create link", zap.String("title", in.Title), zap.Error(err))
		return nil, fmt.Errorf("create link: %w", err)
	}

	c.apply(true, func(links []models.Link) []models.Link {
		return append(links, *created)
	})
	c.logger.Info("link created", zap.String("id", created.ID), zap.String("creator", creator))

	out := *created
	return &out, nil
}

// Update sends a partial update and replaces the cached entry with the
// store's record.
func (c *Cache) Update(ctx context.Context, id string, patch models.LinkPatch) (link *models.Link, err error) {
	defer func() { metrics.RecordLinkMutation("update", err) }()
	return c.update(ctx, id, patch)
}

// ToggleActive shows or hides a link. It is an Update of isActive alone.
func (c *Cache) ToggleActive(ctx context.Context, id string, active bool) (link *models.Link, err error) {
	defer func() { metrics.RecordLinkMutation("toggle", err) }()
	return c.update(ctx, id, models.LinkPatch{IsActive: &active})
}

func (c *Cache) update(ctx context.Context, id string, patch models.LinkPatch) (*models.Link, error) {
	if _, err := c.requireAdmin(); err != nil {
		return nil, err
	}
	if err := validation.ValidateLinkPatch(patch); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}

	now := c.now().UTC()
	patch.UpdatedAt = &now

	updated, err := c.store.Update(ctx, id, patch)
	if err != nil {
		c.logger.Error("failed to update link", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("update link %s: %w", id, err)
	}

	// A link deleted while the update was in flight stays deleted.
	c.apply(true, func(links []models.Link) []models.Link {
		for i := range links {
			if links[i].ID == updated.ID {
				links[i] = *updated
				break
			}
		}
		return links
	})

	out := *updated
	return &out, nil
}

// Delete removes a link from the store and then from the cache.
func (c *Cache) Delete(ctx context.Context, id string) (err error) {
	defer func() { metrics.RecordLinkMutation("delete", err) }()

	if _, err := c.requireAdmin(); err != nil {
		return err
	}

	if err := c.store.Delete(ctx, id); err != nil {
		c.logger.Error("failed to delete link", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete link %s: %w", id, err)
	}

	// Removing an element keeps the remainder sorted.
	c.apply(false, func(links []models.Link) []models.Link {
		return slices.DeleteFunc(links, func(l models.Link) bool { return l.ID == id })
	})
	c.logger.Info("link deleted", zap.String("id", id))
	return nil
}

// apply runs fn on the cached links under the lock, restores the visibility
// and ordering invariants, and notifies watchers.
func (c *Cache) apply(resort bool, fn func([]models.Link) []models.Link) {
	c.mu.Lock()
	links := fn(slices.Clone(c.links))
	if !c.user.IsAdmin() {
		links = activeOnly(links)
	}
	if resort {
		sortLinks(links)
	}
	c.links = links
	c.notifyLocked()
	c.mu.Unlock()
}

// Watch returns a channel that receives a snapshot of the directory now and
// after every change, and a func to stop watching. A slow reader only sees
// the latest snapshot. After Close the returned channel is already closed.
func (c *Cache) Watch() (<-chan []models.Link, func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ch := make(chan []models.Link)
		close(ch)
		return ch, func() {}
	}
	id := c.nextID
	c.nextID++
	ch := make(chan []models.Link, 1)
	c.watchers[id] = ch
	ch <- c.visibleLocked()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(ch)
			}
		})
	}
}

// visibleLocked returns a copy of what the current identity may see.
// Callers hold c.mu.
func (c *Cache) visibleLocked() []models.Link {
	if !c.user.IsAdmin() {
		return activeOnly(c.links)
	}
	return slices.Clone(c.links)
}

// notifyLocked replaces any unread snapshot in each watcher with the current
// one. Callers hold c.mu for writing, so snapshots are delivered in order.
func (c *Cache) notifyLocked() {
	for _, ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- c.visibleLocked()
	}
}

func sortLinks(links []models.Link) {
	slices.SortStableFunc(links, func(a, b models.Link) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}

func activeOnly(links []models.Link) []models.Link {
	out := make([]models.Link, 0, len(links))
	for _, l := range links {
		if l.IsActive {
			out = append(out, l)
		}
	}
	return out
}
