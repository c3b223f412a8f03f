// Package lockfile implements ftlkit.lock, a lock file that tracks
// MD5 checksums of source catalogs per target locale. This enables
// incremental translation: catalogs whose source content is unchanged
// since the last successful run are skipped instead of re-sent to the
// translation provider.
//
// The lock file is stored in the project root next to .ftlkit.yaml.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "ftlkit.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the ftlkit.lock file structure.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"` // locale -> catalog -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// CatalogKey builds a lock file key from a catalog path relative to the
// origin locale directory, normalized to forward slashes.
func CatalogKey(relPath string) string {
	return filepath.ToSlash(relPath)
}

// IsChanged checks if a source catalog has changed since it was last
// translated into the given locale. Returns true if the catalog is new
// or its content has changed.
func (lf *LockFile) IsChanged(locale, catalog, sourceContent string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	catalogs, ok := lf.Checksums[locale]
	if !ok {
		return true
	}
	oldHash, ok := catalogs[catalog]
	if !ok {
		return true
	}
	return oldHash != Hash(sourceContent)
}

// Update records the checksum of a source catalog after successful
// translation into the given locale.
func (lf *LockFile) Update(locale, catalog, sourceContent string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[locale] == nil {
		lf.Checksums[locale] = make(map[string]string)
	}
	lf.Checksums[locale][catalog] = Hash(sourceContent)
}

// Clean removes catalogs from a locale's entries that are no longer in
// the current set. This prevents stale entries from accumulating when
// source catalogs are deleted or renamed.
func (lf *LockFile) Clean(locale string, currentCatalogs []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[locale]
	if existing == nil {
		return
	}

	valid := make(map[string]bool, len(currentCatalogs))
	for _, c := range currentCatalogs {
		valid[c] = true
	}

	for c := range existing {
		if !valid[c] {
			delete(existing, c)
		}
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of locales and total catalogs in the lock file.
func (lf *LockFile) Stats() (locales, catalogs int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	locales = len(lf.Checksums)
	for _, m := range lf.Checksums {
		catalogs += len(m)
	}
	return
}

// Locales returns the sorted list of locales with recorded checksums.
func (lf *LockFile) Locales() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	locales := make([]string, 0, len(lf.Checksums))
	for l := range lf.Checksums {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if len(lf.Checksums) == 0 {
		return "empty"
	}

	locales := make([]string, 0, len(lf.Checksums))
	for l := range lf.Checksums {
		locales = append(locales, l)
	}
	sort.Strings(locales)

	total := 0
	var parts []string
	for _, l := range locales {
		n := len(lf.Checksums[l])
		total += n
		parts = append(parts, fmt.Sprintf("%s: %d catalogs", l, n))
	}
	return fmt.Sprintf("%d locales, %d catalogs (%s)", len(locales), total, strings.Join(parts, ", "))
}
