// Package config loads lanegraph settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chazu/lanegraph/pkg/engine"
	"github.com/chazu/lanegraph/pkg/geometry"
	"github.com/chazu/lanegraph/pkg/pick"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Config is the full settings tree. Missing sections keep their defaults.
type Config struct {
	Geometry Geometry `yaml:"geometry"`
	Pick     Pick     `yaml:"pick"`
	Engine   Engine   `yaml:"engine"`
	Log      Log      `yaml:"log"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Geometry sets mesh resolution.
type Geometry struct {
	Samples   int     `yaml:"samples"`
	NodeDepth float64 `yaml:"node_depth"`
}

// Options converts to the mesh builders' options.
func (g Geometry) Options() geometry.Options {
	return geometry.Options{Samples: g.Samples, NodeDepth: g.NodeDepth}
}

// Pick selects the picking strategy.
type Pick struct {
	BruteForce bool `yaml:"brute_force"`
}

// Options converts to picker options.
func (p Pick) Options() pick.Options {
	return pick.Options{BruteForce: p.BruteForce}
}

// Engine bounds script evaluation.
type Engine struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Metrics configures the scrape endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	g := geometry.DefaultOptions()
	return Config{
		Geometry: Geometry{Samples: g.Samples, NodeDepth: g.NodeDepth},
		Engine:   Engine{Timeout: engine.EvalTimeout},
		Log:      Log{Level: "info", Format: "json"},
	}
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var levels = []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Geometry.Samples < geometry.MinSamples || c.Geometry.Samples > geometry.MaxSamples:
		return fmt.Errorf("config: geometry.samples %d outside [%d, %d]",
			c.Geometry.Samples, geometry.MinSamples, geometry.MaxSamples)
	case !(c.Geometry.NodeDepth > 0):
		return fmt.Errorf("config: geometry.node_depth must be positive, got %g", c.Geometry.NodeDepth)
	case c.Engine.Timeout <= 0:
		return fmt.Errorf("config: engine.timeout must be positive, got %s", c.Engine.Timeout)
	}
	if !lo.Contains(levels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "console" {
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
