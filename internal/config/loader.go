package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// HeapEnvVar selects the heap directory when none is given explicitly.
const HeapEnvVar = "NB_HEAP"

// DefaultHeapDirName is the heap used when neither a path nor NB_HEAP is set,
// relative to the home directory.
const DefaultHeapDirName = "notes"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	heapDir string
}

// NewLoader creates a new configuration loader for the heap at heapDir.
func NewLoader(heapDir string) Loader {
	return &loader{
		heapDir: heapDir,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (NB_*)
// 2. Config file (.nb/config.yml or .nb/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.heapDir, PrivateDirName))

	// NB_INDEX_MAX_RESULTS overrides index.max_results.
	v.SetEnvPrefix("NB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"log.level",
		"index.max_results",
		"index.cache_size",
		"checkpoint.backend",
		"revision.detect_renames",
		"corpus.include",
		"corpus.ignore",
		"watch.debounce_ms",
		"editor",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("index.max_results", defaults.Index.MaxResults)
	v.SetDefault("index.cache_size", defaults.Index.CacheSize)
	v.SetDefault("checkpoint.backend", defaults.Checkpoint.Backend)
	v.SetDefault("revision.detect_renames", defaults.Revision.DetectRenames)
	v.SetDefault("corpus.include", defaults.Corpus.Include)
	v.SetDefault("corpus.ignore", defaults.Corpus.Ignore)
	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMS)
	v.SetDefault("editor", defaults.Editor)
}

// LoadFromHeap loads configuration for the heap at heapDir.
func LoadFromHeap(heapDir string) (*Config, error) {
	return NewLoader(heapDir).Load()
}

// ResolveHeapPath picks the heap directory: explicit if non-empty, then
// $NB_HEAP, then ~/notes. The result is absolute.
func ResolveHeapPath(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(HeapEnvVar)
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, DefaultHeapDirName)
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve heap path %s: %w", path, err)
	}
	return abs, nil
}
