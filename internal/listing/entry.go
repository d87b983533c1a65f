// Package listing reads a directory into entries and renders them as an
// HTML page or a JSON array.
package listing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultStatConcurrency bounds concurrent child stats when callers pass zero.
const DefaultStatConcurrency = 16

// Entry describes one visible child of a listed directory.
type Entry struct {
	Name    string
	IsDir   bool
	ModTime time.Time
	// Size is only meaningful for files.
	Size int64
}

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool { return !e.IsDir }

// DisplayName appends "/" to directory names.
func (e Entry) DisplayName() string {
	if e.IsDir {
		return e.Name + "/"
	}
	return e.Name
}

// Filter selects which directory children are listed.
type Filter struct {
	DisplayDotfiles bool
	Exclude         *regexp.Regexp
}

// Allows applies the dotfile rule first, then the exclude pattern.
func (f Filter) Allows(name string) bool {
	if !f.DisplayDotfiles && strings.HasPrefix(name, ".") {
		return false
	}
	if f.Exclude != nil && f.Exclude.MatchString(name) {
		return false
	}
	return true
}

// Enumerate lists dir, keeping regular files and directories that pass the
// filter. Symlinks are followed; broken ones are skipped. Child stats run
// concurrently but the result keeps the directory read order.
func Enumerate(ctx context.Context, dir string, filter Filter, concurrency int) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = DefaultStatConcurrency
	}

	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if !filter.Allows(d.Name()) {
			continue
		}
		names = append(names, d.Name())
	}

	slots := make([]*Entry, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, ok, err := statChild(dir, name)
			if err != nil {
				return err
			}
			if ok {
				slots[i] = &entry
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(slots))
	for _, e := range slots {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

func statChild(dir, name string) (Entry, bool, error) {
	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// broken symlink or removed since the read
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("stat %s: %w", name, err)
	}
	switch {
	case info.IsDir():
		return Entry{Name: name, IsDir: true, ModTime: info.ModTime()}, true, nil
	case info.Mode().IsRegular():
		return Entry{Name: name, ModTime: info.ModTime(), Size: info.Size()}, true, nil
	default:
		return Entry{}, false, nil
	}
}
