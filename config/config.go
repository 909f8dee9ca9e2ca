// Package config implements the dotted-path JSON configuration document
// store, modeled on original_source/src/config.py: the whole config lives in one JSON
// file, individual values are addressed by a "a.b.c" path, and an
// "environ" key can inject values into the process environment at
// startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Store is an in-memory, disk-backed JSON document addressed by
// dot-separated paths. All reads and writes are serialized by a single
// mutex, mirroring the original's "load the whole file, mutate, write
// the whole file back" discipline — correct for the infrequent
// configuration writes this system performs, and it keeps concurrent
// Get/Set calls from tearing the backing file.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]any
}

// Load reads path as a Store. A missing file is not an error; it starts
// the Store with an empty document that Save will create on first
// write.
func Load(path string) (*Store, error) {
	s := &Store{path: path, data: map[string]any{}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return s, nil
}

// Get resolves the value at the dotted path, returning (nil, false) if
// any segment is missing or not an object.
func (s *Store) Get(path string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur any = s.data
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString is a typed convenience wrapper over Get.
func (s *Store) GetString(path, fallback string) string {
	v, ok := s.Get(path)
	if !ok {
		return fallback
	}
	str, ok := v.(string)
	if !ok {
		return fallback
	}
	return str
}

// GetFloat is a typed convenience wrapper over Get; JSON numbers decode
// as float64.
func (s *Store) GetFloat(path string, fallback float64) float64 {
	v, ok := s.Get(path)
	if !ok {
		return fallback
	}
	f, ok := v.(float64)
	if !ok {
		return fallback
	}
	return f
}

// Set writes value at the dotted path, creating intermediate objects as
// needed, and persists the whole document to disk, matching
// config.py's set_var.
func (s *Store) Set(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	segs := strings.Split(path, ".")
	cur := s.data
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value

	return s.writeLocked()
}

// writeLocked serializes the document with a two-space indent, matching
// config.py's json.dumps(data, indent=2). Caller must hold s.mu.
func (s *Store) writeLocked() error {
	out, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", s.path, err)
	}
	return nil
}

// LoadEnviron applies the "environ" key, if present, to the process
// environment. Per config.py's load_envvars, the value may either be an
// object of name->value pairs applied directly, or a string naming a
// sibling JSON file (typically kept out of version control) holding
// that object.
func (s *Store) LoadEnviron(rootDir string) error {
	v, ok := s.Get("environ")
	if !ok {
		return nil
	}

	vars, ok := v.(map[string]any)
	if !ok {
		name, ok := v.(string)
		if !ok {
			return nil
		}
		raw, err := os.ReadFile(rootDir + string(os.PathSeparator) + name)
		if err != nil {
			return fmt.Errorf("config: read environ file: %w", err)
		}
		var secrets map[string]any
		if err := json.Unmarshal(raw, &secrets); err != nil {
			return fmt.Errorf("config: parse environ file: %w", err)
		}
		vars = secrets
	}

	for k, v := range vars {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if err := os.Setenv(k, str); err != nil {
			return fmt.Errorf("config: setenv %q: %w", k, err)
		}
	}
	return nil
}

// Full returns the entire document. Callers must not mutate the
// returned map; it aliases the Store's internal state.
func (s *Store) Full() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}
