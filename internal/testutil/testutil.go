// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"makosite/internal/db"
	"makosite/internal/models"
)

// TestDB creates a test database connection and returns a cleanup function.
// Uses TEST_DATABASE_URL environment variable and skips the test without it.
func TestDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := db.New(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(connString); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanupTestData(ctx, database.Pool)
	cleanup := func() {
		// Clean up test data
		cleanupTestData(ctx, database.Pool)
		database.Close()
	}

	return database, cleanup
}

// cleanupTestData removes all test data from the database.
func cleanupTestData(ctx context.Context, pool *pgxpool.Pool) {
	pool.Exec(ctx, "DELETE FROM links")
}

// CreateTestLink inserts a link and returns its ID.
func CreateTestLink(t *testing.T, database *db.DB, title string, priority int, active bool) string {
	t.Helper()

	now := time.Now().UTC()
	link, err := database.Create(context.Background(), models.Link{
		Title:     title,
		URL:       "https://example.org/" + title,
		Type:      models.LinkTypeWebsite,
		IsActive:  active,
		Priority:  priority,
		Creator:   "test",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("failed to create test link: %v", err)
	}
	return link.ID
}

// Admin returns a signed-in admin identity.
func Admin() *models.User {
	return &models.User{ID: "admin-1", Name: "Admin", Email: "admin@mako-ai.org", Role: models.RoleAdmin}
}

// Visitor returns a signed-in identity without the admin role.
func Visitor() *models.User {
	return &models.User{ID: "user-1", Name: "Visitor", Email: "visitor@example.com", Role: models.RoleUser}
}

// ContactEndpoint is a fake remote contact endpoint.
type ContactEndpoint struct {
	*httptest.Server

	mu       sync.Mutex
	status   int
	received []map[string]any
}

// NewContactEndpoint starts a fake endpoint answering POST /api/contact and
// GET /api/health with status. It is closed when the test ends.
func NewContactEndpoint(t *testing.T, status int) *ContactEndpoint {
	t.Helper()
	e := &ContactEndpoint{status: status}
	e.Server = httptest.NewServer(http.HandlerFunc(e.serve))
	t.Cleanup(e.Close)
	return e
}

func (e *ContactEndpoint) serve(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	status := e.status
	e.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/contact":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		e.mu.Lock()
		e.received = append(e.received, body)
		e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"received":true}`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/health":
		w.WriteHeader(status)
	default:
		http.NotFound(w, r)
	}
}

// SetStatus changes the status returned from now on.
func (e *ContactEndpoint) SetStatus(status int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
}

// Received returns the decoded bodies of every POST so far.
func (e *ContactEndpoint) Received() []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]map[string]any, len(e.received))
	copy(out, e.received)
	return out
}

// ContactURL is the POST endpoint.
func (e *ContactEndpoint) ContactURL() string { return e.URL + "/api/contact" }

// HealthURL is the health probe URL.
func (e *ContactEndpoint) HealthURL() string { return e.URL + "/api/health" }
