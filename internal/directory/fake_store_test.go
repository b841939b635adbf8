package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"makosite/internal/apperr"
	"makosite/internal/models"
)

// fakeStore is an in-memory Store that counts calls. List returns records in
// insertion order so the cache's own sorting is exercised.
type fakeStore struct {
	mu      sync.Mutex
	links   map[string]models.Link
	order   []string
	nextID  int
	calls   map[string]int
	failErr error
	// listGate, when set, blocks List until a value is received.
	listGate chan struct{}
	// updateGate, when set, blocks Update after the record is written and
	// before the result is returned.
	updateGate chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links: make(map[string]models.Link),
		calls: make(map[string]int),
	}
}

func (s *fakeStore) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *fakeStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// seed inserts a record directly, bypassing call counting.
func (s *fakeStore) seed(l models.Link) models.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		s.nextID++
		l.ID = fmt.Sprintf("link-%d", s.nextID)
	}
	s.links[l.ID] = l
	s.order = append(s.order, l.ID)
	return l
}

func (s *fakeStore) List(ctx context.Context, filter Filter, _ []SortField) ([]models.Link, error) {
	s.mu.Lock()
	s.calls["list"]++
	gate := s.listGate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	var out []models.Link
	for _, id := range s.order {
		l, ok := s.links[id]
		if !ok {
			continue
		}
		if filter.IsActive != nil && l.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, link models.Link) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["create"]++
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.nextID++
	link.ID = fmt.Sprintf("link-%d", s.nextID)
	s.links[link.ID] = link
	s.order = append(s.order, link.ID)
	return &link, nil
}

func (s *fakeStore) Update(ctx context.Context, id string, p models.LinkPatch) (*models.Link, error) {
	link, err := s.update(id, p)
	s.mu.Lock()
	gate := s.updateGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return link, err
}

func (s *fakeStore) update(id string, p models.LinkPatch) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["update"]++
	if s.failErr != nil {
		return nil, s.failErr
	}
	l, ok := s.links[id]
	if !ok {
		return nil, fmt.Errorf("link %s: %w", id, apperr.ErrNotFound)
	}
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.URL != nil {
		l.URL = *p.URL
	}
	if p.Type != nil {
		l.Type = *p.Type
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Icon != nil {
		l.Icon = *p.Icon
	}
	if p.IsActive != nil {
		l.IsActive = *p.IsActive
	}
	if p.Priority != nil {
		l.Priority = *p.Priority
	}
	if p.UpdatedAt != nil {
		l.UpdatedAt = *p.UpdatedAt
	}
	s.links[id] = l
	return &l, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["delete"]++
	if s.failErr != nil {
		return s.failErr
	}
	if _, ok := s.links[id]; !ok {
		return fmt.Errorf("link %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.links, id)
	return nil
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}
