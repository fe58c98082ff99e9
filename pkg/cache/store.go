// Package cache keeps offline snapshots of fetched data on disk. Each key is
// stored as one JSON envelope file, written atomically. Entries older than
// the store's TTL are still served but flagged stale, so a client without
// network access can keep showing the last data it saw.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrMiss is returned when a key has no usable snapshot.
var ErrMiss = errors.New("cache: miss")

// StoreConfig holds configuration for a Store.
type StoreConfig struct {
	// Dir is the directory snapshot files live in. Created with 0755.
	Dir string

	// TTL is how long a snapshot counts as fresh. Default: 10 minutes.
	TTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// envelope is the on-disk form of one snapshot.
type envelope struct {
	Key      string          `json:"key"`
	StoredAt time.Time       `json:"stored_at"`
	Data     json.RawMessage `json:"data"`
}

// Store is a directory of snapshot files. It is safe for concurrent use.
type Store struct {
	cfg StoreConfig

	mu     sync.RWMutex
	hits   int64
	misses int64
}

// Stats holds runtime counters for a Store.
type Stats struct {
	Hits   int64
	Misses int64
}

// NewStore creates the cache directory if needed and returns a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache: directory is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory %s: %w", cfg.Dir, err)
	}
	return &Store{cfg: cfg}, nil
}

// Snapshot is a decoded cache entry.
type Snapshot[T any] struct {
	Value    T
	StoredAt time.Time
	// Stale is set when the entry is older than the store TTL.
	Stale bool
}

// Save serializes value as JSON and stores it under key.
func Save[T any](s *Store, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %q: %w", key, err)
	}
	env, err := json.Marshal(envelope{Key: key, StoredAt: s.cfg.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("cache: marshal envelope for %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicWrite(s.path(key), env, s.cfg.Dir); err != nil {
		return fmt.Errorf("cache: write %q: %w", key, err)
	}
	return nil
}

// Load returns the snapshot stored under key. A missing or undecodable
// entry yields ErrMiss; an undecodable file is removed.
func Load[T any](s *Store, key string) (Snapshot[T], error) {
	var snap Snapshot[T]

	s.mu.RLock()
	raw, err := os.ReadFile(s.path(key))
	s.mu.RUnlock()
	if err != nil {
		s.count(false)
		if os.IsNotExist(err) {
			return snap, ErrMiss
		}
		return snap, fmt.Errorf("cache: read %q: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Key != key {
		s.count(false)
		_ = s.Delete(key)
		return snap, ErrMiss
	}
	if err := json.Unmarshal(env.Data, &snap.Value); err != nil {
		s.count(false)
		return snap, ErrMiss
	}

	s.count(true)
	snap.StoredAt = env.StoredAt
	snap.Stale = s.cfg.Now().Sub(env.StoredAt) > s.cfg.TTL
	return snap, nil
}

// Delete removes the entry for key. Missing entries are not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: delete %q: %w", key, err)
	}
	return nil
}

// Clear removes every snapshot file in the directory.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cache: clear read dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".tmp-") {
			_ = os.Remove(filepath.Join(s.cfg.Dir, name))
		}
	}
	return nil
}

// Stats returns a snapshot of hit and miss counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Hits: s.hits, Misses: s.misses}
}

func (s *Store) count(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.hits++
	} else {
		s.misses++
	}
}

// hashKey maps any key to a short filesystem-safe name: the first 8 bytes
// of its SHA-256, hex encoded.
func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:8])
}

func (s *Store) path(key string) string {
	return filepath.Join(s.cfg.Dir, hashKey(key)+".json")
}

// atomicWrite writes data to path via a temporary file and rename.
func atomicWrite(path string, data []byte, tmpDir string) error {
	tmp, err := os.CreateTemp(tmpDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
