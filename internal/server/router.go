package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MountHandler serves a request once the router has matched a mount. relPath
// is the request path with the mount prefix removed.
type MountHandler interface {
	Handle(c fiber.Ctx, route *MountRoute, relPath string) error
}

// MountHandlerFunc adapts a function to the MountHandler interface.
type MountHandlerFunc func(fiber.Ctx, *MountRoute, string) error

// Handle makes MountHandlerFunc satisfy MountHandler.
func (f MountHandlerFunc) Handle(c fiber.Ctx, route *MountRoute, relPath string) error {
	return f(c, route, relPath)
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   *MountRegistry
	Handler    MountHandler
	ListenPort int
}

const (
	contextKeyRoute     = "_anyindex_route"
	contextKeyRelPath   = "_anyindex_rel_path"
	contextKeyRequestID = "_anyindex_request_id"
)

// NewApp builds a Fiber application with prefix routing middleware and
// structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("mount registry is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("mount handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(requestPath(c)) {
			return c.Next()
		}
		route, relPath, ok := getRouteFromContext(c)
		if !ok {
			return renderMountUnmapped(c, opts.Logger, requestPath(c), opts.ListenPort)
		}
		return opts.Handler.Handle(c, route, relPath)
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并基于请求路径前缀查找 MountRoute。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		path := requestPath(c)
		if isDiagnosticsPath(path) {
			return c.Next()
		}

		route, relPath, ok := opts.Registry.Lookup(path)
		if !ok {
			return renderMountUnmapped(c, opts.Logger, path, opts.ListenPort)
		}

		c.Locals(contextKeyRoute, route)
		c.Locals(contextKeyRelPath, relPath)
		return c.Next()
	}
}

func renderMountUnmapped(c fiber.Ctx, logger *logrus.Logger, path string, port int) error {
	fields := logrus.Fields{
		"action": "mount_lookup",
		"path":   path,
		"port":   port,
	}
	logger.WithFields(fields).Warn("mount unmapped")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "mount_unmapped",
	})
}

// errorHandler renders errors returned by handlers as {"error": message}.
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "internal_error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		}

		fields := logrus.Fields{
			"action": "error_handler",
			"path":   requestPath(c),
			"status": status,
		}
		if reqID := RequestID(c); reqID != "" {
			fields["request_id"] = reqID
		}
		if status >= fiber.StatusInternalServerError {
			logger.WithFields(fields).WithError(err).Error("request_failed")
		} else {
			logger.WithFields(fields).Debug("request_rejected")
		}

		return c.Status(status).JSON(fiber.Map{"error": message})
	}
}

func getRouteFromContext(c fiber.Ctx) (*MountRoute, string, bool) {
	value := c.Locals(contextKeyRoute)
	route, ok := value.(*MountRoute)
	if !ok || route == nil {
		return nil, "", false
	}
	relPath, _ := c.Locals(contextKeyRelPath).(string)
	return route, relPath, true
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// requestPath returns the decoded request path.
func requestPath(c fiber.Ctx) string {
	return string(c.Request().URI().Path())
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
