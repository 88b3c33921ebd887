package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"behaviorgen/internal/extract"
)

// CacheEntry stores the extraction result for one artifact hash.
//
// The cache holds extraction results, not rendered fragments: the root
// fragment depends on the global registry state, so rendered text is never
// safe to replay from a per-artifact key.
type CacheEntry struct {
	// Hash is the ArtifactHash that identifies this entry.
	Hash ArtifactHash `json:"hash"`

	// Skipped records that the artifact declared no container class.
	// Cached skips avoid reparsing inert files on every run.
	Skipped bool `json:"skipped"`

	// Context is the extraction result; nil when Skipped.
	Context *extract.ArtifactContext `json:"context,omitempty"`
}

// Cache provides storage and retrieval of extraction results keyed by
// ArtifactHash. A hit means the artifact's content and the generator
// configuration are both unchanged, so reparsing is unnecessary.
type Cache interface {
	// Has checks whether an entry exists for the given hash.
	Has(hash ArtifactHash) (bool, error)

	// Get retrieves an entry by hash. Returns nil if it does not exist.
	Get(hash ArtifactHash) (*CacheEntry, error)

	// Put stores an entry.
	Put(entry *CacheEntry) error
}

// FileCache implements Cache on the filesystem.
//
// Structure:
//
//	{CacheDir}/
//	  {hash[0:2]}/
//	    {hash}/
//	      entry.json
type FileCache struct {
	// CacheDir is the root directory for cache storage.
	CacheDir string
}

// NewFileCache creates a filesystem-based cache.
func NewFileCache(cacheDir string) *FileCache {
	return &FileCache{CacheDir: cacheDir}
}

// Has checks whether an entry exists for the given hash.
func (c *FileCache) Has(hash ArtifactHash) (bool, error) {
	_, err := os.Stat(filepath.Join(c.entryPath(hash), "entry.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking cache entry: %w", err)
	}
	return true, nil
}

// Get retrieves an entry by hash.
func (c *FileCache) Get(hash ArtifactHash) (*CacheEntry, error) {
	data, err := os.ReadFile(filepath.Join(c.entryPath(hash), "entry.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parsing cache entry: %w", err)
	}
	return &entry, nil
}

// Put stores an entry. The write commits via a temp directory rename so a
// crash never leaves a partially written entry at the canonical path.
func (c *FileCache) Put(entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}

	entryDir := c.entryPath(entry.Hash)
	parentDir := filepath.Dir(entryDir)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parentDir, "tmp-entry-")
	if err != nil {
		return fmt.Errorf("creating temp cache entry dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(tmpDir, "entry.json"), data, 0644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	// Best-effort remove of any existing entry; a crash between remove and
	// rename yields a cache miss (safe), not corruption.
	_ = os.RemoveAll(entryDir)
	if err := os.Rename(tmpDir, entryDir); err != nil {
		return fmt.Errorf("committing cache entry: %w", err)
	}
	committed = true
	return nil
}

// entryPath returns the directory for a cache entry. The first two hash
// characters shard entries so no single directory grows unbounded.
func (c *FileCache) entryPath(hash ArtifactHash) string {
	hashStr := string(hash)
	if len(hashStr) < 2 {
		return filepath.Join(c.CacheDir, hashStr)
	}
	return filepath.Join(c.CacheDir, hashStr[:2], hashStr)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync() // best-effort durability
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// MemoryCache implements Cache in memory. Useful for tests and for clean
// runs that must not observe prior state. Safe for concurrent use; the
// extraction worker pool hits it from multiple goroutines.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[ArtifactHash]*CacheEntry
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[ArtifactHash]*CacheEntry)}
}

// Has checks whether an entry exists.
func (c *MemoryCache) Has(hash ArtifactHash) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[hash]
	return ok, nil
}

// Get retrieves an entry.
func (c *MemoryCache) Get(hash ArtifactHash) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[hash]
	if !ok {
		return nil, nil
	}
	return copyEntry(entry), nil
}

// Put stores an entry.
func (c *MemoryCache) Put(entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Hash] = copyEntry(entry)
	return nil
}

// copyEntry deep-copies an entry so callers can never mutate stored state.
func copyEntry(entry *CacheEntry) *CacheEntry {
	out := &CacheEntry{Hash: entry.Hash, Skipped: entry.Skipped}
	if entry.Context != nil {
		ctx := &extract.ArtifactContext{
			NamespaceName: entry.Context.NamespaceName,
			ArtifactID:    entry.Context.ArtifactID,
			Handlers:      make([]extract.EventHandlerRecord, len(entry.Context.Handlers)),
		}
		copy(ctx.Handlers, entry.Context.Handlers)
		out.Context = ctx
	}
	return out
}
