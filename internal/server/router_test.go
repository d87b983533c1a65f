package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-index/internal/config"
)

func TestRouterRoutesRequestWhenPrefixMatches(t *testing.T) {
	app := newTestApp(t, 5000)

	resp, err := app.Test(httptest.NewRequest("GET", "http://index.local/docs/guide/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 204 status, got %d (body=%s)", resp.StatusCode, string(body))
	}

	if app.storage.routeName != "docs" {
		t.Fatalf("expected docs route, got %s", app.storage.routeName)
	}
	if app.storage.relPath != "/guide/" {
		t.Fatalf("expected relative path /guide/, got %q", app.storage.relPath)
	}

	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRouterReturns404WhenMountUnknown(t *testing.T) {
	app := newTestApp(t, 5000)

	resp, err := app.Test(httptest.NewRequest("GET", "http://index.local/unknown/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"mount_unmapped"`)) {
		t.Fatalf("expected mount_unmapped error, got %s", string(body))
	}
	if app.storage.routeName != "" {
		t.Fatalf("handler should not run for unmapped paths")
	}
}

func TestRouterErrorHandlerRendersJSON(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := newTestRegistry(t)
	app, err := NewApp(AppOptions{
		Logger:   logger,
		Registry: registry,
		Handler: MountHandlerFunc(func(c fiber.Ctx, _ *MountRoute, _ string) error {
			return fiber.NewError(fiber.StatusInternalServerError, "Out of memory")
		}),
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/docs/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"Out of memory"`)) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestNewAppRequiresDependencies(t *testing.T) {
	logger := logrus.New()
	if _, err := NewApp(AppOptions{Registry: newTestRegistry(t), Handler: &handlerRecorder{}, ListenPort: 1}); err == nil {
		t.Fatalf("missing logger should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Handler: &handlerRecorder{}, ListenPort: 1}); err == nil {
		t.Fatalf("missing registry should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Registry: newTestRegistry(t), ListenPort: 1}); err == nil {
		t.Fatalf("missing handler should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Registry: newTestRegistry(t), Handler: &handlerRecorder{}}); err == nil {
		t.Fatalf("invalid port should fail")
	}
}

type testApp struct {
	*fiber.App
	storage *handlerRecorder
}

func newTestRegistry(t *testing.T) *MountRegistry {
	t.Helper()
	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000},
		Mounts: []config.MountConfig{
			{Name: "docs", Prefix: "/docs", Root: t.TempDir()},
		},
	}
	registry, err := NewMountRegistry(cfg)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	return registry
}

func newTestApp(t *testing.T, port int) *testApp {
	t.Helper()

	registry := newTestRegistry(t)
	if _, _, ok := registry.Lookup("/docs/"); !ok {
		t.Fatalf("registry lookup failed for docs")
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	recorder := &handlerRecorder{}
	app, err := NewApp(AppOptions{
		Logger:     logger,
		Registry:   registry,
		Handler:    recorder,
		ListenPort: port,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	return &testApp{App: app, storage: recorder}
}

type handlerRecorder struct {
	lastRoute *MountRoute
	routeName string
	relPath   string
}

func (h *handlerRecorder) Handle(c fiber.Ctx, route *MountRoute, relPath string) error {
	h.lastRoute = route
	h.routeName = route.Config.Name
	h.relPath = relPath
	return c.SendStatus(fiber.StatusNoContent)
}
