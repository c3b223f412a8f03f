// Package config implements the project settings surface for ftlkit:
// the .ftlkit.yaml project file, .env loading for API keys, and
// discovery of locale directories and catalog files under the
// locales tree.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

// LoadEnv loads variables from a .env file in the given directory into the
// process environment. Variables already present in the environment keep
// their values. A missing .env file is not an error.
func LoadEnv(rootDir string) error {
	path := filepath.Join(rootDir, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ---------------------------------------------------------------------------
// Locale and catalog discovery
// ---------------------------------------------------------------------------

// DetectLocales lists the locale subdirectories of localesDir, sorted.
// Directories whose names do not look like locale codes are ignored.
func DetectLocales(localesDir string) []string {
	entries, err := os.ReadDir(localesDir)
	if err != nil {
		return nil
	}

	var locales []string
	for _, entry := range entries {
		if entry.IsDir() && isLocaleCode(entry.Name()) {
			locales = append(locales, entry.Name())
		}
	}
	sort.Strings(locales)
	return locales
}

// isLocaleCode checks if a string looks like a locale code.
// Supports: en, ru, de, pt-BR, zh-CN, etc. (BCP 47 with hyphens).
func isLocaleCode(s string) bool {
	// Simple 2-letter code
	if len(s) == 2 {
		return s[0] >= 'a' && s[0] <= 'z' && s[1] >= 'a' && s[1] <= 'z'
	}
	// 2-letter + region: pt-BR, zh-CN
	parts := strings.SplitN(s, "-", 2)
	if len(parts) == 2 && len(parts[0]) == 2 && len(parts[1]) >= 2 {
		return parts[0][0] >= 'a' && parts[0][0] <= 'z' &&
			parts[0][1] >= 'a' && parts[0][1] <= 'z'
	}
	return false
}

// DiscoverFiles lists every .ftl catalog under originDir, recursively,
// sorted by path.
func DiscoverFiles(originDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(originDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".ftl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", originDir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Applicable reports whether a catalog passes the include/exclude filters.
// Both filters match the base file name. An empty include list admits
// every file; exclusion is checked after inclusion.
func Applicable(path string, include, exclude []string) bool {
	name := filepath.Base(path)
	if len(include) > 0 && !slices.Contains(include, name) {
		return false
	}
	return !slices.Contains(exclude, name)
}

// ---------------------------------------------------------------------------
// Target path mapping
// ---------------------------------------------------------------------------

// PathError reports a source catalog that lies outside the origin locale
// tree and therefore has no well-defined target path.
type PathError struct {
	// Path is the offending source catalog.
	Path string
	// OriginDir is the origin locale directory the catalog must live under.
	OriginDir string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("catalog %s is outside the origin locale directory %s", e.Path, e.OriginDir)
}

// TargetPath maps a source catalog onto the target locale tree, mirroring
// the catalog's relative position under the origin locale directory:
// localesDir/target/<relative path under localesDir/origin>. A catalog
// outside the origin tree yields a PathError.
func TargetPath(localesDir, origin, target, sourceFile string) (string, error) {
	originDir := filepath.Join(localesDir, origin)
	rel, err := filepath.Rel(originDir, sourceFile)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PathError{Path: sourceFile, OriginDir: originDir}
	}
	return filepath.Join(localesDir, target, rel), nil
}
