package autoindex

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/any-index/internal/cache"
	"github.com/any-hub/any-index/internal/config"
	"github.com/any-hub/any-index/internal/logging"
	"github.com/any-hub/any-index/internal/server"
)

func newHandlerApp(t *testing.T, mounts ...config.MountConfig) *fiber.App {
	t.Helper()
	cfg := &config.Config{Global: config.GlobalConfig{ListenPort: 5000}, Mounts: mounts}
	registry, err := server.NewMountRegistry(cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	logger := logging.NewDiscardLogger()
	store := cache.NewStore()
	engines := make(map[string]*Engine, len(mounts))
	for _, m := range mounts {
		engine, err := New(OptionsFromConfig(m, cfg.Global), store, logger)
		if err != nil {
			t.Fatalf("engine %s: %v", m.Name, err)
		}
		engines[m.Name] = engine
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Handler:    NewHandler(logger, engines),
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestHandlerServesListingWithCacheHeader(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "hello"}, "b")
	app := newHandlerApp(t, config.MountConfig{Name: "public", Prefix: "/public", Root: root})

	resp, body := doRequest(t, app, http.MethodGet, "/public/")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Type") != "text/html; charset=utf-8" {
		t.Fatalf("unexpected content type %s", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get(CacheHitHeader) != "false" {
		t.Fatalf("first listing should miss, got %q", resp.Header.Get(CacheHitHeader))
	}
	if !strings.Contains(body, `href="/public/b"`) || !strings.Contains(body, "a.txt") {
		t.Fatalf("unexpected listing %s", body)
	}

	again, cached := doRequest(t, app, http.MethodGet, "/public/")
	if again.Header.Get(CacheHitHeader) != "true" || cached != body {
		t.Fatalf("second listing should be served from cache")
	}
}

func TestHandlerStreamsFiles(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "hello"})
	app := newHandlerApp(t, config.MountConfig{Name: "public", Prefix: "/public", Root: root})

	resp, body := doRequest(t, app, http.MethodGet, "/public/a.txt")
	if resp.StatusCode != fiber.StatusOK || body != "hello" {
		t.Fatalf("unexpected file response %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Type") != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type %s", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Last-Modified") == "" {
		t.Fatalf("Last-Modified expected")
	}
	if resp.Header.Get(CacheHitHeader) != "" {
		t.Fatalf("files never report cache status")
	}

	head, headBody := doRequest(t, app, http.MethodHead, "/public/a.txt")
	if head.StatusCode != fiber.StatusOK || headBody != "" {
		t.Fatalf("HEAD should send headers only, got %d %q", head.StatusCode, headBody)
	}
	if head.Header.Get("Content-Length") != "5" {
		t.Fatalf("HEAD should report the file length, got %q", head.Header.Get("Content-Length"))
	}
}

func TestHandlerErrorStatuses(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "hello"})
	app := newHandlerApp(t, config.MountConfig{Name: "public", Prefix: "/public", Root: root})

	resp, body := doRequest(t, app, http.MethodPost, "/public/")
	if resp.StatusCode != fiber.StatusMethodNotAllowed || resp.Header.Get("Allow") != "GET, HEAD" {
		t.Fatalf("expected 405 with Allow, got %d %v", resp.StatusCode, resp.Header)
	}
	if body != "" {
		t.Fatalf("405 has no body, got %q", body)
	}

	resp, body = doRequest(t, app, http.MethodGet, "/public/missing.txt")
	if resp.StatusCode != fiber.StatusNotFound || body != "" {
		t.Fatalf("expected bare 404, got %d %q", resp.StatusCode, body)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/public")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("bare prefix should be 400, got %d", resp.StatusCode)
	}
}

func TestHandlerSurfacesErrorsWhenConfigured(t *testing.T) {
	always := true
	app := newHandlerApp(t, config.MountConfig{
		Name:             "public",
		Prefix:           "/",
		Root:             t.TempDir(),
		AlwaysThrowError: &always,
	})

	resp, body := doRequest(t, app, http.MethodGet, "/missing.txt")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"error":"No such file or directory (`) {
		t.Fatalf("surfaced error should carry message and detail, got %s", body)
	}
}
