// Package autoindex serves one mounted directory tree: files are streamed
// with content type and length headers, directories are rendered as HTML or
// JSON listings and kept in the shared render cache.
package autoindex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/any-index/internal/cache"
	"github.com/any-hub/any-index/internal/config"
	"github.com/any-hub/any-index/internal/datefmt"
	"github.com/any-hub/any-index/internal/errmap"
	"github.com/any-hub/any-index/internal/listing"
	"github.com/any-hub/any-index/internal/metrics"
	"github.com/any-hub/any-index/internal/sandbox"
)

// Options is the resolved configuration of one Engine.
type Options struct {
	Name   string
	Root   string
	Prefix string

	CacheEnabled bool
	CacheTTL     time.Duration

	DirAtTop         bool
	DisplayDate      bool
	DisplaySize      bool
	DisplayDotfiles  bool
	Exclude          string
	JSON             bool
	Strict           bool
	AlwaysThrowError bool
	DateFormat       string
	CustomTemplate   string
	JSONFields       map[string]string
	HumanSize        bool
	LastModified     bool
	DetectCharset    bool

	Production      bool
	DateCacheSize   int
	StatConcurrency int

	// Now overrides the clock used for cache expiry.
	Now func() time.Time
}

// DefaultOptions returns the defaults of an unconfigured mount.
func DefaultOptions(root string) Options {
	return Options{
		Root:            root,
		CacheEnabled:    true,
		CacheTTL:        config.DefaultCacheTTL,
		DirAtTop:        true,
		DisplayDate:     true,
		DisplaySize:     true,
		Strict:          true,
		DateFormat:      datefmt.DefaultLayout,
		LastModified:    true,
		DetectCharset:   true,
		DateCacheSize:   datefmt.DefaultCacheSize,
		StatConcurrency: listing.DefaultStatConcurrency,
	}
}

// OptionsFromConfig merges a loaded mount with the global settings.
func OptionsFromConfig(m config.MountConfig, g config.GlobalConfig) Options {
	ttl := m.TTLValue()
	prefix := m.Prefix
	if prefix == "/" {
		prefix = ""
	}
	return Options{
		Name:             m.Name,
		Root:             m.Root,
		Prefix:           prefix,
		CacheEnabled:     ttl.Enabled,
		CacheTTL:         ttl.Value,
		DirAtTop:         config.Flag(m.DirAtTop, true),
		DisplayDate:      config.Flag(m.DisplayDate, true),
		DisplaySize:      config.Flag(m.DisplaySize, true),
		DisplayDotfiles:  config.Flag(m.DisplayDotfiles, false),
		Exclude:          m.Exclude,
		JSON:             config.Flag(m.JSON, false),
		Strict:           config.Flag(m.Strict, true),
		AlwaysThrowError: config.Flag(m.AlwaysThrowError, false),
		DateFormat:       m.DateFormat,
		CustomTemplate:   m.CustomTemplate,
		JSONFields:       m.JSONFields,
		HumanSize:        config.Flag(m.HumanSize, false),
		LastModified:     config.Flag(m.LastModified, true),
		DetectCharset:    config.Flag(m.DetectCharset, true),
		Production:       g.Production,
		DateCacheSize:    g.DateCacheSize,
		StatConcurrency:  g.StatConcurrency,
	}
}

// Engine resolves, stats and renders requests for one mount.
type Engine struct {
	opts       Options
	resolver   *sandbox.Resolver
	renderer   *listing.Renderer
	translator *errmap.Translator
	filter     listing.Filter
	store      cache.Store
	logger     *logrus.Logger
	now        func() time.Time
	group      singleflight.Group
}

// New validates the mount and builds an Engine. store may be nil when the
// cache is disabled; every other failure aborts startup.
func New(opts Options, store cache.Store, logger *logrus.Logger) (*Engine, error) {
	if opts.Root == "" {
		return nil, errors.New("root is required")
	}
	if err := checkRoot(opts.Root); err != nil {
		return nil, err
	}

	resolver, err := sandbox.NewResolver(opts.Root, opts.Prefix)
	if err != nil {
		return nil, err
	}

	var exclude *regexp.Regexp
	if opts.Exclude != "" {
		exclude, err = regexp.Compile(opts.Exclude)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
	}

	var page string
	if opts.CustomTemplate != "" {
		raw, err := os.ReadFile(opts.CustomTemplate)
		if err != nil {
			return nil, fmt.Errorf("customTemplate path is incorrect: %s: %w", opts.CustomTemplate, err)
		}
		page = string(raw)
	}

	renderer, err := listing.NewRenderer(listing.Options{
		DirAtTop:    opts.DirAtTop,
		DisplayDate: opts.DisplayDate,
		DisplaySize: opts.DisplaySize,
		HumanSize:   opts.HumanSize,
		Template:    page,
		JSONFields:  jsonFields(opts.JSONFields),
		Dates:       datefmt.NewFormatter(opts.DateFormat, opts.DateCacheSize),
	})
	if err != nil {
		return nil, err
	}

	if opts.CacheEnabled && (store == nil || opts.CacheTTL <= 0) {
		opts.CacheEnabled = false
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		opts:       opts,
		resolver:   resolver,
		renderer:   renderer,
		translator: errmap.NewTranslator(opts.Production, opts.AlwaysThrowError),
		filter:     listing.Filter{DisplayDotfiles: opts.DisplayDotfiles, Exclude: exclude},
		store:      store,
		logger:     logger,
		now:        now,
	}, nil
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root is not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root is not a directory: %s", root)
	}
	dir, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("root is not readable: %w", err)
	}
	return dir.Close()
}

// jsonFields maps configured renames onto the renderer's optional fields.
func jsonFields(raw map[string]string) *listing.JSONFields {
	if len(raw) == 0 {
		return nil
	}
	fields := &listing.JSONFields{}
	for key, renamed := range raw {
		v := renamed
		switch config.CanonicalJSONField(key) {
		case "isDir":
			fields.IsDir = &v
		case "name":
			fields.Name = &v
		case "path":
			fields.Path = &v
		case "time":
			fields.Time = &v
		case "size":
			fields.Size = &v
		}
	}
	return fields
}

// Name returns the mount name.
func (e *Engine) Name() string { return e.opts.Name }

// CacheEnabled reports whether listings of this mount are cached.
func (e *Engine) CacheEnabled() bool { return e.opts.CacheEnabled }

// Serve handles one request. relPath is the request path below the mount
// prefix. A non-nil error is an *errmap.Error the caller should surface; the
// returned Response always carries the status to send.
func (e *Engine) Serve(ctx context.Context, method, relPath string) (*Response, error) {
	if e.opts.Strict && method != http.MethodGet && method != http.MethodHead {
		resp := newResponse(http.StatusMethodNotAllowed, KindMethodNotAllowed)
		resp.Header.Set("Allow", "GET, HEAD")
		resp.Header.Set("Content-Length", "0")
		return resp, nil
	}
	if err := ctx.Err(); err != nil {
		return e.fail("", err)
	}

	res, err := e.resolver.Resolve(relPath)
	switch {
	case errors.Is(err, sandbox.ErrAmbiguous):
		return e.fail("", errmap.Status(http.StatusBadRequest))
	case err != nil:
		return e.fail("", errmap.WithCode("ENOENT", err))
	}

	info, err := os.Stat(res.FSPath)
	if err != nil {
		return e.fail(res.RequestPath, err)
	}
	switch {
	case info.Mode().IsRegular():
		return e.serveFile(method, res, info)
	case info.IsDir():
		return e.serveDirectory(res)
	default:
		return e.fail(res.RequestPath, errmap.WithCode("ENOENT", fmt.Errorf("stat %s: not a file or directory", res.RequestPath)))
	}
}

func (e *Engine) fail(path string, err error) (*Response, error) {
	t := e.translator.Translate(err)
	resp := newResponse(t.Status, KindError)
	resp.Path = path
	resp.ErrorCode = t.Code
	return resp, t.Err()
}

func (e *Engine) serveFile(method string, res sandbox.Resolution, info os.FileInfo) (*Response, error) {
	f, err := os.Open(res.FSPath)
	if err != nil {
		return e.fail(res.RequestPath, err)
	}

	media := contentTypeFor(info.Name())
	if isTextType(media) {
		charset := "utf-8"
		if e.opts.DetectCharset {
			charset = detectCharset(f, info.Size())
		}
		if charset != "" {
			media += "; charset=" + charset
		}
	}

	resp := newResponse(http.StatusOK, KindFile)
	resp.Path = res.RequestPath
	resp.Size = info.Size()
	resp.Header.Set("Content-Type", media)
	resp.Header.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if e.opts.LastModified {
		resp.Header.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	}

	if method == http.MethodHead {
		_ = f.Close()
		return resp, nil
	}
	resp.File = f
	return resp, nil
}

func (e *Engine) serveDirectory(res sandbox.Resolution) (*Response, error) {
	key := res.RequestPath
	if e.opts.CacheEnabled {
		rec, ok := e.store.Get(key)
		metrics.RecordCacheLookup(e.opts.Name, ok)
		if ok {
			return e.directoryResponse(res, rec.Payload, rec.IsJSON, true), nil
		}
	}

	// Concurrent misses on one path share a single render.
	value, err, _ := e.group.Do(key, func() (interface{}, error) {
		return e.render(res)
	})
	if err != nil {
		return e.fail(res.RequestPath, err)
	}
	rec := value.(cache.Record)
	return e.directoryResponse(res, rec.Payload, rec.IsJSON, false), nil
}

// render enumerates and renders one directory and stores the result. It runs
// on a background context so a started render always completes.
func (e *Engine) render(res sandbox.Resolution) (cache.Record, error) {
	started := time.Now()
	entries, err := listing.Enumerate(context.Background(), res.FSPath, e.filter, e.opts.StatConcurrency)
	if err != nil {
		return cache.Record{}, err
	}

	items := make([]listing.Item, len(entries))
	for i, entry := range entries {
		items[i] = listing.Item{Entry: entry, Href: e.resolver.Href(res, entry.Name)}
	}

	rec := cache.Record{IsJSON: e.opts.JSON}
	if e.opts.JSON {
		rec.Payload, err = e.renderer.JSON(items)
		if err != nil {
			return cache.Record{}, fmt.Errorf("render json: %w", err)
		}
	} else {
		page := listing.Page{Title: res.Title, Items: items}
		if res.Title != "/" {
			page.Parent = e.resolver.Parent(res)
		}
		rec.Payload = []byte(e.renderer.HTML(page))
	}
	metrics.RecordRender(e.opts.Name, time.Since(started))

	if e.opts.CacheEnabled {
		rec.ExpiresAt = e.now().Add(e.opts.CacheTTL)
		e.store.Put(res.RequestPath, rec)
		e.logger.WithFields(logrus.Fields{
			"action":  "render_cache_store",
			"mount":   e.opts.Name,
			"path":    res.RequestPath,
			"entries": len(items),
			"bytes":   len(rec.Payload),
		}).Debug("listing cached")
	}
	return rec, nil
}

func (e *Engine) directoryResponse(res sandbox.Resolution, payload []byte, isJSON, hit bool) *Response {
	resp := newResponse(http.StatusOK, KindDirectory)
	resp.Path = res.RequestPath
	resp.Body = payload
	resp.Size = int64(len(payload))
	resp.CacheHit = hit
	if isJSON {
		resp.Header.Set("Content-Type", "application/json; charset=utf-8")
	} else {
		resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	}
	resp.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	return resp
}
