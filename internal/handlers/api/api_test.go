package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"makosite/internal/apperr"
	"makosite/internal/directory"
	"makosite/internal/models"
	"makosite/internal/testutil"
)

// memStore is a minimal directory.Store for handler tests.
type memStore struct {
	mu      sync.Mutex
	links   map[string]models.Link
	nextID  int
	failErr error
}

func newMemStore() *memStore {
	return &memStore{links: make(map[string]models.Link)}
}

func (s *memStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *memStore) add(l models.Link) models.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	l.ID = fmt.Sprintf("link-%d", s.nextID)
	s.links[l.ID] = l
	return l
}

func (s *memStore) List(_ context.Context, f directory.Filter, _ []directory.SortField) ([]models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	var out []models.Link
	for _, l := range s.links {
		if f.IsActive != nil && l.IsActive != *f.IsActive {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, l models.Link) (*models.Link, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	l = s.add(l)
	return &l, nil
}

func (s *memStore) Update(_ context.Context, id string, p models.LinkPatch) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if _, ok := s.links[id]; !ok {
		return fmt.Errorf("link %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.links, id)
	return nil
}

func (s *memStore) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Stale  bool            `json:"stale"`
}

// asUser stands in for the session middleware: the X-Test-User header picks
// the identity.
func asUser(c fiber.Ctx) error {
	switch c.Get("X-Test-User") {
	case "admin":
		c.Locals("user", testutil.Admin())
	case "visitor":
		c.Locals("user", testutil.Visitor())
	}
	return c.Next()
}

func newLinksApp(t *testing.T, store directory.Store) *fiber.App {
	t.Helper()
	pool := directory.NewPool(store, zap.NewNop())
	t.Cleanup(pool.Close)

	h := NewLinkHandler(pool, zap.NewNop())
	app := fiber.New()
	app.Use(asUser)
	app.Get("/api/links", h.List)
	app.Post("/api/links", h.Create)
	app.Put("/api/links/:id", h.Update)
	app.Post("/api/links/:id/active", h.SetActive)
	app.Delete("/api/links/:id", h.Delete)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, user, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decodeLinks(t *testing.T, raw json.RawMessage) []models.Link {
	t.Helper()
	var links []models.Link
	require.NoError(t, json.Unmarshal(raw, &links))
	return links
}


func seedLinks(s *memStore) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.add(models.Link{Title: "Docs", Type: models.LinkTypeWebsite, IsActive: true, Priority: 10, CreatedAt: base})
	s.add(models.Link{Title: "Fund", Type: models.LinkTypeGoFundMe, IsActive: true, Priority: 90, CreatedAt: base})
	s.add(models.Link{Title: "Draft", Type: models.LinkTypeOther, IsActive: false, Priority: 50, CreatedAt: base})
}
