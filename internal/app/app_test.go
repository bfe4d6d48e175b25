package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	gorillaws "github.com/gorilla/websocket"

	"github.com/interpolis/tourpoule/internal/auth"
	"github.com/interpolis/tourpoule/internal/cache"
	"github.com/interpolis/tourpoule/internal/config"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/services"
)

func testConfig() config.Config {
	return config.Config{
		Port:          8081,
		DatabaseURL:   ":memory:",
		DatabaseType:  "sqlite",
		LogLevel:      "info",
		CacheTTL:      time.Minute,
		LockTimeout:   time.Second,
		PublicBaseURL: "https://tourpoule.example.com",
	}
}

func createTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	app, err := New(context.Background(), logger.NewDiscard(), cfg, auth.New("test-password"), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

func TestNew_InitializesApp(t *testing.T) {
	app := createTestApp(t, testConfig())

	if app.handlers == nil {
		t.Error("expected handlers to be initialized")
	}
	if app.repo == nil {
		t.Error("expected repo to be initialized")
	}
	if app.hub == nil {
		t.Error("expected websocket hub to be initialized")
	}
	if app.cache != nil {
		t.Error("expected no cache without REDIS_URL")
	}
	if app.handlers.Identity != nil || app.handlers.Login != nil {
		t.Error("expected participant sign-in to be disabled without OIDC settings")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad db path", func(c *config.Config) { c.DatabaseURL = "/nonexistent/path/db.sqlite" }},
		{"unknown database type", func(c *config.Config) { c.DatabaseType = "oracle" }},
		{"unreachable identity provider", func(c *config.Config) {
			c.OIDC = config.OIDC{Issuer: "http://127.0.0.1:1", ClientID: "tourpoule"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			app, err := New(context.Background(), logger.NewDiscard(), cfg, auth.New("pw"), Options{})
			if err == nil {
				app.Close()
				t.Error("expected an error")
			}
		})
	}
}

func TestNew_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = fmt.Sprintf("redis://%s", mr.Addr())

	app := createTestApp(t, cfg)
	if app.cache == nil {
		t.Fatal("expected the redis cache to be wired")
	}

	server := httptest.NewServer(app.Router())
	defer server.Close()
	resp, err := http.Get(server.URL + "/api/standings")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !mr.Exists(cache.KeyStandings) {
		t.Error("expected standings to be cached in redis")
	}
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	app := createTestApp(t, cfg)
	if app.cache != nil {
		t.Error("expected the app to run without cache when redis is down")
	}
}

func TestNew_WithIdentityProvider(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		base := "http://" + r.Host
		json.NewEncoder(w).Encode(map[string]string{
			"authorization_endpoint": base + "/authorize",
			"token_endpoint":         base + "/token",
			"userinfo_endpoint":      base + "/userinfo",
		})
	}))
	defer idp.Close()

	cfg := testConfig()
	cfg.OIDC = config.OIDC{Issuer: idp.URL, ClientID: "tourpoule", RedirectURL: "https://tourpoule.example.com/auth/callback"}
	app, err := New(context.Background(), logger.NewDiscard(), cfg, auth.New("pw"), Options{HTTPClient: idp.Client()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	if app.handlers.Login == nil {
		t.Fatal("expected participant sign-in to be enabled")
	}
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if rec.Code != http.StatusFound || !strings.HasPrefix(rec.Header().Get("Location"), idp.URL+"/authorize") {
		t.Errorf("expected a redirect to the provider, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestApp_Router_ServesRequests(t *testing.T) {
	app := createTestApp(t, testConfig())
	server := httptest.NewServer(app.Router())
	defer server.Close()

	for _, path := range []string{"/healthz", "/api/status", "/api/riders"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestApp_WebsocketSendsStandings(t *testing.T) {
	app := createTestApp(t, testConfig())
	server := httptest.NewServer(app.Router())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Type != "standings" {
		t.Errorf("expected a standings snapshot, got %q", msg.Type)
	}
}

func TestApp_Run_StopsOnCancel(t *testing.T) {
	app := createTestApp(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected a clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_Run_UsesLANAddressWithoutBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.PublicBaseURL = ""
	app := createTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	p, err := app.teams.CreateParticipant(context.Background(), services.ProfileRequest{TeamName: "Alpha"})
	if err != nil {
		t.Fatalf("CreateParticipant failed: %v", err)
	}
	if url := app.teams.ShareURL(p); !strings.HasPrefix(url, "http://") || !strings.HasSuffix(url, "/teams/"+p.PublicID) {
		t.Errorf("share url = %q", url)
	}
}
