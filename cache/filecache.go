package cache

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"
)

// FileCache implements the Cache interface using filesystem storage. Entries
// survive process restarts, which lets a CLI or a prerender process start warm.
type FileCache struct {
	dir string
	ttl time.Duration
	now Clock
}

type fileEntry struct {
	Key   string `json:"key"`
	Entry Entry  `json:"entry"`
}

// DefaultDir returns the default cache directory in the user's home.
func DefaultDir() (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(usr.HomeDir, ".djedi_cache"), nil
}

// NewFileCache creates a file-based cache in dir. If dir is empty, uses DefaultDir.
func NewFileCache(dir string, ttl time.Duration, opts ...Option) (*FileCache, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	return &FileCache{dir: dir, ttl: ttl, now: o.now}, nil
}

// Dir returns the directory entries are stored in.
func (fc *FileCache) Dir() string {
	return fc.dir
}

// Get implements Cache
func (fc *FileCache) Get(key string) (*Entry, bool, bool) {
	data, err := os.ReadFile(fc.path(key))
	if err != nil {
		return nil, false, false
	}

	var fe fileEntry
	if err := json.Unmarshal(data, &fe); err != nil {
		return nil, false, false
	}
	if fe.Key != key {
		return nil, false, false
	}

	return &fe.Entry, isStale(fc.now(), fe.Entry.FetchedAt, fc.ttl), true
}

// Set implements Cache
func (fc *FileCache) Set(key string, entry Entry) {
	// Cache has no error return; a failed write is just a later miss.
	_ = fc.Write(key, entry)
}

// Write stores entry under key and reports filesystem errors.
func (fc *FileCache) Write(key string, entry Entry) error {
	path := fc.path(key)
	entry.FetchedAt = fc.now()

	data, err := json.MarshalIndent(fileEntry{Key: key, Entry: entry}, "", "  ")
	if err != nil {
		return err
	}

	// Write to temporary file first, then rename (atomic operation)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// Delete implements Cache
func (fc *FileCache) Delete(key string) {
	_ = os.Remove(fc.path(key))
}

// Purge implements Purger
func (fc *FileCache) Purge() {
	entries, err := os.ReadDir(fc.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		_ = os.Remove(filepath.Join(fc.dir, e.Name()))
	}
}

// path generates the full filesystem path for a cache key
func (fc *FileCache) path(key string) string {
	return filepath.Join(fc.dir, FileName(key))
}
