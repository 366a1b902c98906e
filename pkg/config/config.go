// Package config loads analysis and server settings from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"space_syntax/pkg/syntax"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full configuration of the command line tool and server.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	OSM      OSMConfig      `yaml:"osm"`
	Server   ServerConfig   `yaml:"server"`
}

// AnalysisConfig holds the default analysis parameters.
type AnalysisConfig struct {
	Tolerance            float64 `yaml:"tolerance"`
	Merge                bool    `yaml:"merge"`
	Radius               float64 `yaml:"radius"` // -1 for global
	RadiusPolicy         string  `yaml:"radius_policy"`
	SnapEndpoints        bool    `yaml:"snap_endpoints"`
	LargestComponentOnly bool    `yaml:"largest_component_only"`
	Workers              int     `yaml:"workers"`
}

// OSMConfig controls how OpenStreetMap extracts are turned into polylines.
type OSMConfig struct {
	LayerHeight float64  `yaml:"layer_height"` // metres per OSM layer step
	Highways    []string `yaml:"highways"`     // empty keeps every routable highway
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	CORSOrigin     string        `yaml:"cors_origin"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Tolerance:    1e-6,
			Merge:        false,
			Radius:       -1,
			RadiusPolicy: syntax.MetricBounded.String(),
		},
		OSM: OSMConfig{
			LayerHeight: 5,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   2 * time.Minute,
			RequestTimeout: time.Minute,
			MaxConcurrent:  runtime.NumCPU(),
			MaxBodyBytes:   32 << 20,
		},
	}
}

// Load reads path over the defaults and applies SPACESYNTAX_* environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnvironment(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("SPACESYNTAX_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.Tolerance = f
		}
	}
	if v := os.Getenv("SPACESYNTAX_RADIUS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.Radius = f
		}
	}
	if v := os.Getenv("SPACESYNTAX_MERGE"); v != "" {
		cfg.Analysis.Merge = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("SPACESYNTAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Workers = n
		}
	}
	if v := os.Getenv("SPACESYNTAX_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	a := c.Analysis
	if math.IsNaN(a.Tolerance) || a.Tolerance < 0 {
		return fmt.Errorf("%w: analysis.tolerance %v", ErrInvalid, a.Tolerance)
	}
	if math.IsNaN(a.Radius) {
		return fmt.Errorf("%w: analysis.radius is NaN", ErrInvalid)
	}
	if _, err := syntax.ParseRadiusPolicy(a.RadiusPolicy); err != nil {
		return fmt.Errorf("%w: analysis.radius_policy: %v", ErrInvalid, err)
	}
	if a.Workers < 0 {
		return fmt.Errorf("%w: analysis.workers %d", ErrInvalid, a.Workers)
	}
	if c.OSM.LayerHeight < 0 {
		return fmt.Errorf("%w: osm.layer_height %v", ErrInvalid, c.OSM.LayerHeight)
	}
	s := c.Server
	if s.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: server.max_concurrent %d", ErrInvalid, s.MaxConcurrent)
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("%w: server.request_timeout %v", ErrInvalid, s.RequestTimeout)
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: server.max_body_bytes %d", ErrInvalid, s.MaxBodyBytes)
	}
	return nil
}

// Request builds an analysis request from the configured defaults.
func (a AnalysisConfig) Request() (syntax.Request, error) {
	policy, err := syntax.ParseRadiusPolicy(a.RadiusPolicy)
	if err != nil {
		return syntax.Request{}, err
	}
	return syntax.Request{
		Tolerance:            a.Tolerance,
		Merge:                a.Merge,
		Radius:               a.Radius,
		RadiusPolicy:         policy,
		SnapEndpoints:        a.SnapEndpoints,
		LargestComponentOnly: a.LargestComponentOnly,
		Workers:              a.Workers,
	}, nil
}
