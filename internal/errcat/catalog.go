// Package errcat is the stable error-code catalog backing every ERROR
// response: a code maps to a severity and an advisory message, so internal
// exception text never reaches a client (spec's error-handling policy).
package errcat

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

//go:embed codes.yaml
var defaultFiles embed.FS

type Entry struct {
	Message  string `yaml:"message"`
	Severity string `yaml:"severity"`
}

// Catalog loads entries from the embedded default file and an optional
// override directory, last-writer-wins within overrides but duplicate keys
// across override files are rejected (same policy as the pack's message
// catalog this is grounded on).
type Catalog struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// New loads the embedded defaults and then applies overrides from dir, if
// dir is non-empty.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{data: make(map[string]Entry)}
	if err := c.loadEmbedded(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadEmbedded() error {
	raw, err := fs.ReadFile(defaultFiles, "codes.yaml")
	if err != nil {
		return fmt.Errorf("read embedded error codes: %w", err)
	}
	return c.applyYAML(raw)
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read error-catalog override dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := strings.ToLower(filepath.Ext(e.Name())); ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	seen := make(map[string]string)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		var m map[string]Entry
		if err := yaml.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k := range m {
			if prev, ok := seen[k]; ok {
				return fmt.Errorf("duplicate error code %q in %s and %s", k, prev, name)
			}
			seen[k] = name
		}
		c.mu.Lock()
		for k, v := range m {
			c.data[k] = v
		}
		c.mu.Unlock()
	}
	return nil
}

func (c *Catalog) applyYAML(b []byte) error {
	var m map[string]Entry
	if err := yaml.Unmarshal(b, &m); err != nil {
		return err
	}
	c.mu.Lock()
	for k, v := range m {
		c.data[k] = v
	}
	c.mu.Unlock()
	return nil
}

// Lookup returns the entry for code, case-insensitively. Unknown codes fall
// back to a generic internal-error entry rather than panicking, since a
// caller passing an unrecognised code is itself a programmer error that
// must not crash the worker.
func (c *Catalog) Lookup(code string) Entry {
	key := strings.ToLower(strings.TrimSpace(code))
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{Message: "An internal error occurred.", Severity: "error"}
	}
	return e
}
