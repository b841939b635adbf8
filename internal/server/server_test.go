package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/encryptcookie"
	"github.com/gofiber/fiber/v3/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"makosite/internal/config"
	"makosite/internal/contact"
	"makosite/internal/directory"
	"makosite/internal/kv"
	"makosite/internal/middleware"
	"makosite/internal/models"
	"makosite/internal/testutil"
)

// TestEncryptCookieSessionRoundTrip verifies that the encryptcookie +
// session middleware stack survives a client replaying encrypted session
// cookies across multiple requests.
func TestEncryptCookieSessionRoundTrip(t *testing.T) {
	// Use the same key-derivation as production (deriveEncryptionKey).
	secret := "test-secret-that-is-long-enough-for-production"
	encryptionKey := deriveEncryptionKey(secret)

	const wantUser = "admin@mako-ai.org ADMIN"

	app := fiber.New()

	// Mirror the production middleware order exactly:
	// 1. encryptcookie  2. session  3. route handler
	app.Use(encryptcookie.New(encryptcookie.Config{
		Key: encryptionKey,
	}))

	sessionMiddleware, _ := session.NewWithStore(session.Config{
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})
	app.Use(sessionMiddleware)

	// Handler that writes a session value on POST and reads it on GET.
	app.Post("/login", func(c fiber.Ctx) error {
		sess := session.FromContext(c)
		if sess == nil {
			return c.Status(500).SendString("no session")
		}
		middleware.SaveUser(sess, testutil.Admin())
		return c.SendString("ok")
	})
	app.Get("/whoami", func(c fiber.Ctx) error {
		sess := session.FromContext(c)
		if sess == nil {
			return c.Status(500).SendString("no session")
		}
		user := middleware.SessionUser(sess)
		if user == nil {
			return c.SendString("")
		}
		val := user.Email + " " + user.Role
		return c.SendString(val)
	})

	// --- Request 1: establish a session ---
	req, _ := http.NewRequest("POST", "/login", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request 1 failed: %v", err)
	}
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("request 1: expected 200, got %d: %s", resp.StatusCode, body)
	}

	// Collect Set-Cookie headers from the response.
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatal("request 1: no cookies returned")
	}

	// --- Request 2: replay cookies (triggers encryptcookie decryption) ---
	req2, _ := http.NewRequest("GET", "/whoami", nil)
	for _, c := range cookies {
		req2.AddCookie(c)
	}

	resp2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("request 2 failed (possible encryptcookie panic): %v", err)
	}
	body, _ := io.ReadAll(resp2.Body)
	if resp2.StatusCode != 200 {
		t.Fatalf("request 2: expected 200, got %d: %s", resp2.StatusCode, body)
	}
	if string(body) != wantUser {
		t.Errorf("request 2: expected %q, got %q", wantUser, body)
	}

	// --- Request 3: one more round-trip to confirm stability ---
	cookies2 := resp2.Cookies()
	req3, _ := http.NewRequest("GET", "/whoami", nil)
	// Use cookies from resp2 if present, otherwise fall back to original.
	replayCookies := cookies2
	if len(replayCookies) == 0 {
		replayCookies = cookies
	}
	for _, c := range replayCookies {
		req3.AddCookie(c)
	}

	resp3, err := app.Test(req3)
	if err != nil {
		t.Fatalf("request 3 failed: %v", err)
	}
	body3, _ := io.ReadAll(resp3.Body)
	if resp3.StatusCode != 200 {
		t.Fatalf("request 3: expected 200, got %d: %s", resp3.StatusCode, body3)
	}
	if string(body3) != wantUser {
		t.Errorf("request 3: expected %q, got %q", wantUser, body3)
	}
}

type emptyStore struct{}

func (emptyStore) List(context.Context, directory.Filter, []directory.SortField) ([]models.Link, error) {
	return []models.Link{{ID: "1", Title: "Fund", IsActive: true, Priority: 90}}, nil
}

func (emptyStore) Create(context.Context, models.Link) (*models.Link, error) {
	panic("unexpected create")
}

func (emptyStore) Update(context.Context, string, models.LinkPatch) (*models.Link, error) {
	panic("unexpected update")
}

func (emptyStore) Delete(context.Context, string) error {
	panic("unexpected delete")
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Env:                  "development",
		BaseURL:              "http://localhost:3000",
		SessionSecret:        "test-secret",
		SiteTitle:            "MAKO",
		ContactFallbackEmail: "contact@mako-ai.org",
	}

	pool := directory.NewPool(emptyStore{}, zap.NewNop())
	t.Cleanup(pool.Close)

	endpoint := testutil.NewContactEndpoint(t, http.StatusOK)
	queue := contact.NewQueue(contact.Config{
		Endpoint:  endpoint.ContactURL(),
		HealthURL: endpoint.HealthURL(),
	}, kv.NewMemory())

	srv := New(cfg, zap.NewNop(), nil)
	require.NoError(t, srv.RegisterRoutes(context.Background(), Deps{
		Pool:     pool,
		Queue:    queue,
		Database: okPinger{},
	}))
	return srv
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		expected int
	}{
		{"liveness", http.MethodGet, "/healthz", "", http.StatusOK},
		{"readiness", http.MethodGet, "/readyz", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"links", http.MethodGet, "/api/links", "", http.StatusOK},
		{"anonymous create", http.MethodPost, "/api/links", `{"title":"x","url":"https://x.org","type":"other"}`, http.StatusForbidden},
		{"anonymous delete", http.MethodDelete, "/api/links/1", "", http.StatusForbidden},
		{"queue needs sign in", http.MethodGet, "/api/contact/queue", "", http.StatusUnauthorized},
		{"contact health", http.MethodGet, "/api/contact/health", "", http.StatusOK},
		{"no auth routes without OIDC", http.MethodGet, "/auth/login", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req, _ := http.NewRequest(tt.method, tt.path, body)
			req.Header.Set("Content-Type", "application/json")
			resp, err := srv.App.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}

func TestErrorHandlerRendersJSON(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, "/no-such-page", nil)
	resp, err := srv.App.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
	assert.NotEmpty(t, body["error"])
}

func TestDeriveEncryptionKey(t *testing.T) {
	key := deriveEncryptionKey("secret")
	assert.Equal(t, key, deriveEncryptionKey("secret"))
	assert.NotEqual(t, key, deriveEncryptionKey("other"))
	assert.Len(t, key, 44)
}
