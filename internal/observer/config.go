package observer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries the per-compilation settings an Observer needs before any
// file is pushed.
type Config struct {
	// Corpus and Root scope every claimable identity this observer mints.
	Corpus string `yaml:"corpus"`
	Root   string `yaml:"root"`
	// Language stamps emitted VNames, e.g. "c++".
	Language string `yaml:"language"`
	// Claimant identifies this compilation to the claim service. Two
	// workers with the same claimant never contend.
	Claimant string `yaml:"claimant"`
	// StartingContext is the preprocessor context the main source file
	// begins in. Empty for ordinary compilations.
	StartingContext string `yaml:"starting_context"`
	// StrictBuiltins makes an unknown builtin spelling fatal instead of
	// synthesized.
	StrictBuiltins bool `yaml:"strict_builtins"`
	// DropRedundantWraiths suppresses repeated context-blamed edges over
	// the same physical span.
	DropRedundantWraiths bool `yaml:"drop_redundant_wraiths"`
}

// LoadConfig reads a Config from a YAML file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
