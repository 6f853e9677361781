package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"go.uber.org/zap/zapcore"
)

var (
	// ErrInvalidBackend indicates an unsupported checkpoint backend
	ErrInvalidBackend = errors.New("invalid checkpoint backend")

	// ErrInvalidMaxResults indicates a non-positive result ceiling
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrInvalidPattern indicates a corpus glob that does not compile
	ErrInvalidPattern = errors.New("invalid corpus pattern")

	// ErrInvalidLogLevel indicates an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidDebounce indicates a negative watch debounce
	ErrInvalidDebounce = errors.New("invalid watch debounce")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Log.Level))
	}

	if cfg.Index.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_results must be positive, got %d", ErrInvalidMaxResults, cfg.Index.MaxResults))
	}

	switch strings.ToLower(cfg.Checkpoint.Backend) {
	case "file", "badger":
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'file' or 'badger', got '%s'", ErrInvalidBackend, cfg.Checkpoint.Backend))
	}

	if err := validatePatterns(&cfg.Corpus); err != nil {
		errs = append(errs, err)
	}

	if cfg.Watch.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("%w: debounce_ms cannot be negative, got %d", ErrInvalidDebounce, cfg.Watch.DebounceMS))
	}

	return joinErrors(errs)
}

func validatePatterns(cfg *CorpusConfig) error {
	var errs []error
	for _, group := range []struct {
		name     string
		patterns []string
	}{
		{"include", cfg.Include},
		{"ignore", cfg.Ignore},
	} {
		for _, pattern := range group.patterns {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s pattern %q: %v", ErrInvalidPattern, group.name, pattern, err))
			}
		}
	}
	return joinErrors(errs)
}

// joinErrors combines multiple errors into a single error with clear
// formatting. Every input stays matchable with errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	verbs := make([]string, len(errs))
	args := make([]any, len(errs))
	for i, err := range errs {
		verbs[i] = "%w"
		args[i] = err
	}

	return fmt.Errorf("validation failed:\n  - "+strings.Join(verbs, "\n  - "), args...)
}
