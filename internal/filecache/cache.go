// Package filecache persists decoded TMDB documents on disk with a fixed
// six-hour lifetime, one JSON file per entity, language and season/episode.
package filecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// TTL is how long a written document stays valid, judged by file mtime.
const TTL = 6 * time.Hour

// Cache is a TTL-bound JSON document store rooted at a directory.
type Cache struct {
	fs   afero.Fs
	root string
	log  hclog.Logger
	now  func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l hclog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a cache storing documents under root on fsys. A nil fsys
// selects the operating system filesystem.
func New(fsys afero.Fs, root string, opts ...Option) *Cache {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	c := &Cache{
		fs:   fsys,
		root: root,
		log:  hclog.NewNullLogger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the directory documents are stored under.
func (c *Cache) Root() string { return c.root }

// Location returns the on-disk path for key.
func (c *Cache) Location(key Key) string {
	return filepath.Join(c.root, filepath.FromSlash(key.Path()))
}

// Get decodes the document for key into v. It reports false when the entry is
// missing or older than TTL.
func (c *Cache) Get(key Key, v any) (bool, error) {
	if err := key.validate(); err != nil {
		return false, err
	}
	p := c.Location(key)
	info, err := c.fs.Stat(p)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	if age := c.now().Sub(info.ModTime()); age > TTL {
		c.log.Trace("expired entry", "key", key.String(), "age", age)
		return false, nil
	}
	data, err := afero.ReadFile(c.fs, p)
	if errors.Is(err, fs.ErrNotExist) {
		// Removed between stat and read.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", p, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", p, err)
	}
	return true, nil
}

// Put serializes v and writes it for key, creating directories as needed.
// The document is written to a temporary file first and renamed into place,
// so readers never see a partial document and the last writer wins.
func (c *Cache) Put(key Key, v any) error {
	if err := key.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	p := c.Location(key)
	if err := c.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(p), err)
	}
	tmp := p + "." + uuid.NewString() + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := c.fs.Rename(tmp, p); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", p, err)
	}
	c.log.Trace("stored entry", "key", key.String(), "path", p)
	return nil
}

// Remove deletes the entry for key if present.
func (c *Cache) Remove(key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	err := c.fs.Remove(c.Location(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every cached document.
func (c *Cache) Clear() error {
	for _, k := range []Kind{KindMovie, KindCollection, KindPerson, KindSeries} {
		if err := c.fs.RemoveAll(filepath.Join(c.root, string(k))); err != nil {
			return err
		}
	}
	return nil
}
