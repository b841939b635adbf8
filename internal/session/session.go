// Package session exposes the signed-in identity and a stream of identity changes.
package session

import (
	"sync"

	"makosite/internal/models"
)

// Oracle supplies the current identity and notifies subscribers when it changes.
// A nil *models.User means signed out.
type Oracle interface {
	Current() *models.User
	// Subscribe returns a channel of identity changes and a func that
	// unsubscribes and closes the channel. Only the latest pending
	// identity is kept for a slow subscriber.
	Subscribe() (<-chan *models.User, func())
}

// Broadcaster is an in-process Oracle. The auth handlers publish to it on
// login and logout.
type Broadcaster struct {
	mu      sync.Mutex
	current *models.User
	subs    map[int]chan *models.User
	nextID  int
}

// NewBroadcaster returns a Broadcaster whose initial identity is user (may be nil).
func NewBroadcaster(user *models.User) *Broadcaster {
	return &Broadcaster{
		current: clone(user),
		subs:    make(map[int]chan *models.User),
	}
}

// Current returns a copy of the current identity.
func (b *Broadcaster) Current() *models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone(b.current)
}

// Subscribe implements Oracle.
func (b *Broadcaster) Subscribe() (<-chan *models.User, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan *models.User, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish sets the current identity and notifies every subscriber.
// It never blocks: a pending, unread identity is replaced by the new one.
func (b *Broadcaster) Publish(user *models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = clone(user)
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- clone(user)
	}
}

func clone(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
