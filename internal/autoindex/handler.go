package autoindex

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-index/internal/errmap"
	"github.com/any-hub/any-index/internal/logging"
	"github.com/any-hub/any-index/internal/metrics"
	"github.com/any-hub/any-index/internal/server"
)

// CacheHitHeader reports whether a directory listing came from the render cache.
const CacheHitHeader = "X-Any-Index-Cache-Hit"

// Handler binds mount engines to the Fiber router.
type Handler struct {
	logger  *logrus.Logger
	engines map[string]*Engine
}

// NewHandler constructs a handler serving the given engines keyed by mount name.
func NewHandler(logger *logrus.Logger, engines map[string]*Engine) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{logger: logger, engines: engines}
}

// Handle implements server.MountHandler.
func (h *Handler) Handle(c fiber.Ctx, route *server.MountRoute, relPath string) error {
	started := time.Now()
	requestID := server.RequestID(c)

	engine, ok := h.engines[route.Config.Name]
	if !ok {
		h.logger.WithFields(logrus.Fields{
			"action": "index",
			"mount":  route.Config.Name,
		}).Error("mount engine missing")
		return fiber.NewError(fiber.StatusInternalServerError, "mount_engine_missing")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resp, serveErr := engine.Serve(ctx, c.Method(), relPath)
	if resp == nil {
		resp = newResponse(http.StatusInternalServerError, KindError)
	}
	defer resp.Close()

	for key, values := range resp.Header {
		if key == "Content-Length" {
			continue
		}
		for _, v := range values {
			c.Set(key, v)
		}
	}
	if resp.Kind == KindDirectory && engine.CacheEnabled() {
		c.Set(CacheHitHeader, strconv.FormatBool(resp.CacheHit))
	}
	c.Status(resp.Status)

	var err error
	switch {
	case serveErr != nil:
		var ie *errmap.Error
		if errors.As(serveErr, &ie) {
			err = fiber.NewError(ie.Status, ie.Message)
		} else {
			err = serveErr
		}
	case resp.Kind == KindDirectory:
		err = c.Send(resp.Body)
	case resp.Kind == KindFile && resp.File != nil:
		file := resp.File
		resp.File = nil
		// fasthttp closes the stream once the body is written.
		err = c.SendStream(file, int(resp.Size))
	case resp.Kind == KindFile:
		c.Response().Header.SetContentLength(int(resp.Size))
	}

	elapsed := time.Since(started)
	metrics.RecordRequest(engine.Name(), string(resp.Kind), resp.Status, elapsed)
	h.logResult(engine, route, resp, requestID, elapsed, serveErr)
	return err
}

func (h *Handler) logResult(
	engine *Engine,
	route *server.MountRoute,
	resp *Response,
	requestID string,
	elapsed time.Duration,
	err error,
) {
	fields := logging.RequestFields(
		engine.Name(),
		route.Prefix(),
		resp.Path,
		string(resp.Kind),
		resp.CacheHit,
	)
	fields["action"] = "index"
	fields["status"] = resp.Status
	fields["elapsed_ms"] = elapsed.Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if resp.ErrorCode != "" {
		fields["error_code"] = resp.ErrorCode
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("index_failed")
		return
	}
	if resp.Kind == KindError {
		h.logger.WithFields(fields).Warn("index_failed")
		return
	}
	h.logger.WithFields(fields).Info("index_complete")
}
