// Package config loads heap configuration.
//
// Priority (highest to lowest):
//  1. Environment variables (NB_*)
//  2. Heap config file (<heap>/.nb/config.yml)
//  3. Built-in defaults
//
// A Config is built once per command and passed down explicitly.
package config

// PrivateDirName is the heap's private directory, excluded from git.
const PrivateDirName = ".nb"

// Config represents the complete nb configuration for one heap.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Index      IndexConfig      `yaml:"index" mapstructure:"index"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" mapstructure:"checkpoint"`
	Revision   RevisionConfig   `yaml:"revision" mapstructure:"revision"`
	Corpus     CorpusConfig     `yaml:"corpus" mapstructure:"corpus"`
	Watch      WatchConfig      `yaml:"watch" mapstructure:"watch"`
	Editor     string           `yaml:"editor" mapstructure:"editor"` // command used by add/edit; empty means $EDITOR, then vi
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// IndexConfig configures the search index.
type IndexConfig struct {
	MaxResults int `yaml:"max_results" mapstructure:"max_results"` // query result ceiling
	CacheSize  int `yaml:"cache_size" mapstructure:"cache_size"`   // cached query results; negative disables
}

// CheckpointConfig selects the checkpoint store.
type CheckpointConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // "file" or "badger"
}

// RevisionConfig configures how revisions are diffed.
type RevisionConfig struct {
	DetectRenames bool `yaml:"detect_renames" mapstructure:"detect_renames"`
}

// CorpusConfig defines which files in the heap are notes.
type CorpusConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for note files
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// WatchConfig configures `nb sync --watch`.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "warn",
		},
		Index: IndexConfig{
			MaxResults: 10,
			CacheSize:  256,
		},
		Checkpoint: CheckpointConfig{
			Backend: "file",
		},
		Revision: RevisionConfig{
			DetectRenames: false,
		},
		Corpus: CorpusConfig{
			Include: []string{
				"**/*.md",
				"**/*.markdown",
				"**/*.txt",
			},
			Ignore: []string{},
		},
		Watch: WatchConfig{
			DebounceMS: 250,
		},
	}
}
