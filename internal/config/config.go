// Package config loads run configuration from YAML layered over embedded
// defaults.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Evolution  EvolutionConfig  `yaml:"evolution"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type EvolutionConfig struct {
	PopulationSize int    `yaml:"population_size"` // Even, fixed for the whole run
	TournamentK    int    `yaml:"tournament_k"`    // 2 <= k <= population_size
	MutationAmount int    `yaml:"mutation_amount"` // Cells redrawn per child
	Crossover      string `yaml:"crossover"`       // one_point or uniform
	Elitism        bool   `yaml:"elitism"`         // Clone the best cached genome every generation
	Seed           int64  `yaml:"seed"`
	Generations    int    `yaml:"generations"`
}

type EvaluationConfig struct {
	Scape             string        `yaml:"scape"`
	MaxConcurrent     int           `yaml:"max_concurrent"`     // Slots evaluated per batch
	GenerationTimeout time.Duration `yaml:"generation_timeout"` // Deadline for one batch
}

type StorageConfig struct {
	Kind         string `yaml:"kind"` // memory or sqlite
	SQLitePath   string `yaml:"sqlite_path"`
	ArtifactsDir string `yaml:"artifacts_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty disables the /metrics listener
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file overwrite defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	return cfg, nil
}

// Validate reports the first setting the engine cannot run with.
func (c *Config) Validate() error {
	e := c.Evolution
	if e.PopulationSize < 2 || e.PopulationSize%2 != 0 {
		return fmt.Errorf("evolution.population_size must be even and >= 2, got %d", e.PopulationSize)
	}
	if e.TournamentK < 2 || e.TournamentK > e.PopulationSize {
		return fmt.Errorf("evolution.tournament_k must be in [2, %d], got %d", e.PopulationSize, e.TournamentK)
	}
	if e.MutationAmount < 0 {
		return fmt.Errorf("evolution.mutation_amount must be >= 0, got %d", e.MutationAmount)
	}
	switch e.Crossover {
	case "one_point", "uniform":
	default:
		return fmt.Errorf("evolution.crossover must be one_point or uniform, got %q", e.Crossover)
	}
	if e.Generations < 0 {
		return fmt.Errorf("evolution.generations must be >= 0, got %d", e.Generations)
	}

	if c.Evaluation.Scape == "" {
		return fmt.Errorf("evaluation.scape is required")
	}
	if c.Evaluation.MaxConcurrent < 1 {
		return fmt.Errorf("evaluation.max_concurrent must be >= 1, got %d", c.Evaluation.MaxConcurrent)
	}
	if c.Evaluation.GenerationTimeout <= 0 {
		return fmt.Errorf("evaluation.generation_timeout must be > 0, got %s", c.Evaluation.GenerationTimeout)
	}

	switch c.Storage.Kind {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("storage.kind must be memory or sqlite, got %q", c.Storage.Kind)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// NewLogger builds the slog logger described by the logging section.
func (l LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
