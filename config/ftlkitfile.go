package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .ftlkit.yaml structure. When the file exists in
// the project root, ftlkit reads pipeline defaults from it; command-line
// flags override file values. Numeric fields left at zero fall back to
// the built-in defaults of the translation pipeline.
type File struct {
	// LocalesDir is the directory holding per-locale catalog trees (default "locales").
	LocalesDir string `yaml:"locales_dir,omitempty"`
	// OriginLocale is the locale translations are made from (default "en").
	OriginLocale string `yaml:"origin_locale,omitempty"`
	// TargetLocales lists the locales to translate into. Empty means every
	// locale directory found under LocalesDir except the origin.
	TargetLocales []string `yaml:"target_locales,omitempty"`
	// IncludeFiles restricts translation to catalogs with these base names.
	IncludeFiles []string `yaml:"include_files,omitempty"`
	// ExcludeFiles skips catalogs with these base names.
	ExcludeFiles []string `yaml:"exclude_files,omitempty"`
	// BatchSize is the number of messages joined into one provider request.
	BatchSize int `yaml:"batch_size,omitempty"`
	// Limit caps concurrent requests per translation session.
	Limit int `yaml:"limit,omitempty"`
	// RetryCount is how many times a rate-limited request is retried.
	RetryCount int `yaml:"retry_count,omitempty"`
	// RetryWaitSeconds is the pause between rate-limit retries.
	RetryWaitSeconds int `yaml:"retry_wait_seconds,omitempty"`
	// Proxies lists proxy URLs; each proxy gets its own translation session.
	Proxies []string `yaml:"proxies,omitempty"`
	// Provider selects the translation backend: "google" or "openai".
	Provider string `yaml:"provider,omitempty"`
	// Model is the model used for OpenAI batch jobs.
	Model string `yaml:"model,omitempty"`
	// CheckIntervalSeconds is the OpenAI batch job poll interval.
	CheckIntervalSeconds int `yaml:"check_interval_seconds,omitempty"`
}

// ProviderGoogle translates through the web Google Translate endpoint.
const ProviderGoogle = "google"

// ProviderOpenAI translates through OpenAI batch jobs.
const ProviderOpenAI = "openai"

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// FileName is the project file looked up in the project root.
const FileName = ".ftlkit.yaml"

// Load reads and validates .ftlkit.yaml from the given directory.
// Returns nil if no .ftlkit.yaml exists.
func Load(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// Defaults
	if f.LocalesDir == "" {
		f.LocalesDir = "locales"
	}
	if f.OriginLocale == "" {
		f.OriginLocale = "en"
	}
	if f.Provider == "" {
		f.Provider = ProviderGoogle
	}

	// Validate
	switch f.Provider {
	case ProviderGoogle, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("%s: unknown provider %q (valid: google, openai)", path, f.Provider)
	}
	for _, field := range []struct {
		name  string
		value int
	}{
		{"batch_size", f.BatchSize},
		{"limit", f.Limit},
		{"retry_count", f.RetryCount},
		{"retry_wait_seconds", f.RetryWaitSeconds},
		{"check_interval_seconds", f.CheckIntervalSeconds},
	} {
		if field.value < 0 {
			return nil, fmt.Errorf("%s: %s must not be negative", path, field.name)
		}
	}

	return &f, nil
}
