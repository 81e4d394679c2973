package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// The API key may come from the config file, a .env file in the working
// directory, or the ELEVENLABS_API_KEY / QUILL_API_KEY environment
// variables, in increasing order of precedence.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	cfg := Default()
	warnings := make([]Warning, 0)
	exists := true

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
		exists = false
	} else {
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
	}

	applyEnvOverrides(&cfg)

	validateWarnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, validateWarnings...)

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   exists,
	}, nil
}

// applyEnvOverrides layers .env and process environment on top of file values.
func applyEnvOverrides(cfg *Config) {
	// A missing .env is the normal case, not an error.
	_ = godotenv.Load()

	for _, name := range []string{"ELEVENLABS_API_KEY", "QUILL_API_KEY"} {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			cfg.API.APIKey = value
		}
	}
	if level := strings.TrimSpace(os.Getenv("QUILL_LOG_LEVEL")); level != "" {
		cfg.Logging.Level = level
	}
}
