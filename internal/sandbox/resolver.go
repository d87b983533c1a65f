// Package sandbox maps mount-relative request paths onto a root directory
// without ever producing a filesystem path outside that root.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEscape reports a request path that would leave the mount or the root.
	ErrEscape = errors.New("path escapes mount root")
	// ErrAmbiguous reports an empty path under a non-empty mount prefix.
	ErrAmbiguous = errors.New("empty path under mount prefix")
)

// Resolution is the outcome of resolving one request path.
type Resolution struct {
	// RequestPath is the normalized request path including the prefix; it is
	// also the render cache key.
	RequestPath string
	// RelPath is the path below the mount, without leading or trailing slash.
	RelPath string
	// FSPath is the absolute filesystem path inside Root.
	FSPath string
	// Title is "/" for the root, "/<rel>/" otherwise.
	Title string
}

// Resolver binds a root directory to an optional mount prefix.
type Resolver struct {
	root   string
	prefix string
}

// NewResolver validates prefix and cleans root. Callers check that root
// exists; NewResolver only works on strings.
func NewResolver(root, prefix string) (*Resolver, error) {
	if root == "" {
		return nil, errors.New("root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	prefix = strings.TrimSpace(prefix)
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		return nil, fmt.Errorf("path '%s' not start with /", prefix)
	}
	prefix = Normalize(prefix)
	if prefix == "/" {
		prefix = ""
	}
	return &Resolver{root: filepath.Clean(abs), prefix: prefix}, nil
}

// Root returns the cleaned absolute root directory.
func (r *Resolver) Root() string { return r.root }

// Prefix returns the normalized mount prefix, empty when mounted at "/".
func (r *Resolver) Prefix() string { return r.prefix }

// Resolve turns a mount-relative request path into a sandboxed Resolution.
func (r *Resolver) Resolve(requestPath string) (Resolution, error) {
	if strings.IndexByte(requestPath, 0) >= 0 {
		return Resolution{}, ErrEscape
	}
	if r.prefix != "" && requestPath == "" {
		return Resolution{}, ErrAmbiguous
	}
	if climbsAboveRoot(requestPath) {
		return Resolution{}, ErrEscape
	}

	full := Normalize(r.prefix + "/" + requestPath)

	rel := full
	if r.prefix != "" {
		if full != r.prefix && !strings.HasPrefix(full, r.prefix+"/") {
			return Resolution{}, ErrEscape
		}
		rel = strings.TrimPrefix(full, r.prefix)
	}
	rel = strings.Trim(rel, "/")

	segments := []string{r.root}
	if rel != "" {
		for _, seg := range strings.Split(rel, "/") {
			if seg == "" || seg == "." || seg == ".." || strings.ContainsRune(seg, filepath.Separator) {
				return Resolution{}, ErrEscape
			}
			segments = append(segments, seg)
		}
	}

	fsPath := filepath.Join(segments...)
	if !within(r.root, fsPath) {
		return Resolution{}, ErrEscape
	}

	title := "/"
	if rel != "" {
		title = "/" + rel + "/"
	}

	return Resolution{
		RequestPath: full,
		RelPath:     rel,
		FSPath:      fsPath,
		Title:       title,
	}, nil
}

// Href builds the link path for a child of the directory described by res.
func (r *Resolver) Href(res Resolution, name string) string {
	return Normalize(r.prefix + res.Title + name)
}

// Parent returns the link to the parent directory of res, with trailing slash.
func (r *Resolver) Parent(res Resolution) string {
	parent := path.Dir(res.RequestPath)
	if parent == "/" {
		return "/"
	}
	return parent + "/"
}

// Normalize applies NFC normalization and POSIX cleaning, stripping a single
// trailing slash except for the root.
func Normalize(p string) string {
	p = norm.NFC.String(p)
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = path.Clean("/" + cleaned)
	}
	return cleaned
}

// climbsAboveRoot reports whether ".." segments in p rise above its start.
func climbsAboveRoot(p string) bool {
	depth := 0
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}

func within(root, target string) bool {
	if target == root {
		return true
	}
	sep := string(os.PathSeparator)
	base := root
	if !strings.HasSuffix(base, sep) {
		base += sep
	}
	return strings.HasPrefix(target, base)
}
