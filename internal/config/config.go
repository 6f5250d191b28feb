// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	MinPoints = 4
	MaxPoints = 100000
)

// Config holds the settings of an analysis run, populated from environment
// variables and optionally a YAML run file.
type Config struct {
	BoundaryFile  string `yaml:"boundary_file"`
	RasterFile    string `yaml:"raster_file"`
	ProvincesFile string `yaml:"provinces_file"`
	Region        string `yaml:"region"`
	OutputDir     string `yaml:"output_dir"`
	Prefix        string `yaml:"prefix"`

	// Tessellation and statistics.
	Points     int     `yaml:"points"`
	Seed       int64   `yaml:"seed"`
	RelaxSteps int     `yaml:"relax_steps"`
	MinSpeed   float64 `yaml:"min_speed"`
	NoPlots    bool    `yaml:"no_plots"`
	Workers    int     `yaml:"workers"`
	BatchSize  int     `yaml:"batch_size"`

	HTTPAddr        string        `yaml:"http_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present;
// it never overrides variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	points, err := envInt("WIND_POINTS", 100)
	if err != nil {
		return nil, err
	}
	seed, err := envInt("WIND_SEED", 42)
	if err != nil {
		return nil, err
	}
	relax, err := envInt("WIND_RELAX_STEPS", 0)
	if err != nil {
		return nil, err
	}
	minSpeed, err := envFloat("WIND_MIN_SPEED", 6.0)
	if err != nil {
		return nil, err
	}
	noPlots, err := envBool("WIND_NO_PLOTS", false)
	if err != nil {
		return nil, err
	}
	workers, err := envInt("WIND_WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	batchSize, err := envInt("WIND_BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BoundaryFile:  os.Getenv("WIND_BOUNDARY_FILE"),
		RasterFile:    os.Getenv("WIND_RASTER_FILE"),
		ProvincesFile: os.Getenv("WIND_PROVINCES_FILE"),
		Region:        os.Getenv("WIND_REGION"),
		OutputDir:     envOrDefault("WIND_OUTPUT_DIR", "results"),
		Prefix:        envOrDefault("WIND_PREFIX", "vietnam_wind_potential"),

		Points:     points,
		Seed:       int64(seed),
		RelaxSteps: relax,
		MinSpeed:   minSpeed,
		NoPlots:    noPlots,
		Workers:    workers,
		BatchSize:  batchSize,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML run file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return c.Validate()
}

// Validate checks ranges, naming the environment variable at fault.
func (c *Config) Validate() error {
	if c.Points < MinPoints || c.Points > MaxPoints {
		return fmt.Errorf("WIND_POINTS must be between %d and %d", MinPoints, MaxPoints)
	}
	if c.RelaxSteps < 0 {
		return errors.New("WIND_RELAX_STEPS must not be negative")
	}
	if c.MinSpeed < 0 {
		return errors.New("WIND_MIN_SPEED must not be negative")
	}
	if c.Workers < 1 {
		return errors.New("WIND_WORKERS must be positive")
	}
	if c.BatchSize < 1 {
		return errors.New("WIND_BATCH_SIZE must be positive")
	}
	if c.OutputDir == "" {
		return errors.New("WIND_OUTPUT_DIR is required")
	}
	if c.Prefix == "" {
		return errors.New("WIND_PREFIX is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
