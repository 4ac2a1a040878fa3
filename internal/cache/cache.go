// Package cache keeps small pieces of sync bookkeeping in a single JSON file.
//
// Every Save rewrites the whole file before returning. The cache is meant for
// one process at a time; concurrent writers from several processes are not
// coordinated.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"code.cloudfoundry.org/cf-networking-helpers/marshal"
	"github.com/google/renameio/v2"
)

var (
	// ErrNotLoaded is returned by Get when the backing file did not exist and
	// nothing has been saved since.
	ErrNotLoaded = errors.New("cache not loaded")
	// ErrKeyNotFound is returned by Get for a key that has no value.
	ErrKeyNotFound = errors.New("key not found")
)

type Cache struct {
	Marshaler   marshal.Marshaler
	Unmarshaler marshal.Unmarshaler

	path    string
	loaded  bool
	entries map[string]json.RawMessage
}

// Open loads the cache file at path. A missing file yields an empty cache.
func Open(path string) (*Cache, error) {
	c := &Cache{
		Marshaler:   marshal.MarshalFunc(json.Marshal),
		Unmarshaler: marshal.UnmarshalFunc(json.Unmarshal),
		path:        path,
		entries:     make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}

	if err := c.Unmarshaler.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", path, err)
	}
	if c.entries == nil {
		c.entries = make(map[string]json.RawMessage)
	}
	c.loaded = true
	return c, nil
}

// Get decodes the value stored under key into v.
func (c *Cache) Get(key string, v any) error {
	raw, ok := c.entries[key]
	if !ok {
		if !c.loaded {
			return fmt.Errorf("%s: %w", key, ErrNotLoaded)
		}
		return fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}
	if err := c.Unmarshaler.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Save stores v under key and persists the whole cache before returning.
// If persisting fails the previous value is restored.
func (c *Cache) Save(key string, v any) error {
	raw, err := c.Marshaler.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	prev, had := c.entries[key]
	c.entries[key] = raw

	if err := c.flush(); err != nil {
		if had {
			c.entries[key] = prev
		} else {
			delete(c.entries, key)
		}
		return err
	}
	c.loaded = true
	return nil
}

// Keys returns the stored keys in sorted order.
func (c *Cache) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Cache) flush() error {
	data, err := c.Marshaler.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := renameio.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write cache %s: %w", c.path, err)
	}
	return nil
}
