// Package config loads drowsyd configuration. Sources are applied in order:
// defaults, YAML file, .env file, DROWSY_* environment variables, then
// command-line flags that were explicitly set.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/drowsy/pkg/detection"
	"github.com/teslashibe/drowsy/pkg/fatigue"
)

// Store path values with special meaning.
const (
	StoreMemory  = "memory"
	StoreDefault = ""
)

// Detection presets.
const (
	PresetStandard  = "standard"
	PresetSensitive = "sensitive"
	PresetRelaxed   = "relaxed"
)

// Config is the service configuration.
type Config struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"log_level"`
	Debug     bool   `yaml:"debug"`
	Store     string `yaml:"store"`      // calibration store file, "memory", or empty for ~/.drowsy
	AutoStart bool   `yaml:"auto_start"` // start sessions on extractor hello

	Detection Detection `yaml:"detection"`
}

// Detection holds the engine settings exposed to operators. Zero values
// keep the preset's defaults.
type Detection struct {
	Preset             string        `yaml:"preset"`
	FPS                int           `yaml:"fps"`
	EARThreshold       float64       `yaml:"ear_threshold"`
	MARThreshold       float64       `yaml:"mar_threshold"`
	EventThreshold     int           `yaml:"event_threshold"`
	NoFaceFrames       int           `yaml:"no_face_frames"`
	AckCooldown        time.Duration `yaml:"ack_cooldown"`
	RequireCalibration bool          `yaml:"require_calibration"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:      "",
		Port:      8080,
		Env:       "development",
		LogLevel:  "info",
		AutoStart: true,
		Detection: Detection{
			Preset: PresetStandard,
			FPS:    detection.DefaultConfig().FPS,
		},
	}
}

// Load builds the configuration. path names an optional YAML file; envFiles
// are .env files to load (default ".env"). Missing .env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Host = getEnv("DROWSY_HOST", c.Host)
	c.Port = getEnvInt("PORT", c.Port)
	c.Port = getEnvInt("DROWSY_PORT", c.Port)
	c.Env = getEnv("DROWSY_ENV", c.Env)
	c.LogLevel = getEnv("DROWSY_LOG_LEVEL", c.LogLevel)
	c.Debug = getEnvBool("DROWSY_DEBUG", c.Debug)
	c.Store = getEnv("DROWSY_STORE", c.Store)
	c.AutoStart = getEnvBool("DROWSY_AUTO_START", c.AutoStart)
	c.Detection.Preset = getEnv("DROWSY_PRESET", c.Detection.Preset)
	c.Detection.FPS = getEnvInt("DROWSY_FPS", c.Detection.FPS)
}

// Flags holds command-line overrides.
type Flags struct {
	Config   string
	Port     int
	LogLevel string
	Debug    bool
	Store    string
	Preset   string
	FPS      int
}

// Register defines the flags on fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to YAML config file")
	fs.IntVar(&f.Port, "port", 8080, "HTTP server port")
	fs.StringVar(&f.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolVar(&f.Debug, "debug", false, "Enable request logging")
	fs.StringVar(&f.Store, "store", "", `Calibration store file ("memory" to keep it in memory)`)
	fs.StringVar(&f.Preset, "preset", PresetStandard, "Detection preset (standard, sensitive, relaxed)")
	fs.IntVar(&f.FPS, "fps", detection.DefaultConfig().FPS, "Target processing rate per session")
}

// ApplyFlags copies flags that were set on the command line into c.
func (c *Config) ApplyFlags(fs *flag.FlagSet, f *Flags) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "port":
			c.Port = f.Port
		case "log-level":
			c.LogLevel = f.LogLevel
		case "debug":
			c.Debug = f.Debug
		case "store":
			c.Store = f.Store
		case "preset":
			c.Detection.Preset = f.Preset
		case "fps":
			c.Detection.FPS = f.FPS
		}
	})
}

// Validate rejects configurations the service cannot run with. Detection
// thresholds are clamped by the engine instead.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	switch c.Detection.Preset {
	case PresetStandard, PresetSensitive, PresetRelaxed:
	default:
		errs = append(errs, fmt.Errorf("unknown detection preset %q", c.Detection.Preset))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Machine builds the detection machine configuration.
func (d Detection) Machine() detection.Config {
	cfg := detection.DefaultConfig()

	switch d.Preset {
	case PresetSensitive:
		cfg.Fatigue = fatigue.SensitiveConfig()
	case PresetRelaxed:
		cfg.Fatigue = fatigue.RelaxedConfig()
	}
	cfg.Fatigue.RequireCalibration = d.RequireCalibration

	if d.EARThreshold > 0 {
		cfg.Fatigue.EARThreshold = d.EARThreshold
	}
	if d.MARThreshold > 0 {
		cfg.Fatigue.MARThreshold = d.MARThreshold
	}
	if d.EventThreshold > 0 {
		cfg.Fatigue.EventThreshold = d.EventThreshold
	}
	if d.NoFaceFrames > 0 {
		cfg.NoFaceFrames = d.NoFaceFrames
	}
	if d.AckCooldown > 0 {
		cfg.AckCooldown = d.AckCooldown
	}
	if d.FPS != 0 {
		cfg.FPS = detection.ClampFPS(d.FPS)
	}
	return cfg
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
