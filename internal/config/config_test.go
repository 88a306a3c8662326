package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/drowsy/pkg/fatigue"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "DROWSY_HOST", "DROWSY_PORT", "DROWSY_ENV", "DROWSY_LOG_LEVEL", "DROWSY_DEBUG",
		"DROWSY_STORE", "DROWSY_AUTO_START", "DROWSY_PRESET", "DROWSY_FPS",
	} {
		t.Setenv(key, "")
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, PresetStandard, cfg.Detection.Preset)
	assert.True(t, cfg.AutoStart)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "drowsy.yaml", `
port: 9000
log_level: debug
store: memory
detection:
  preset: sensitive
  fps: 30
  ear_threshold: 0.2
  ack_cooldown: 5s
`)
	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, PresetSensitive, cfg.Detection.Preset)
	assert.Equal(t, 30, cfg.Detection.FPS)
	assert.Equal(t, 5*time.Second, cfg.Detection.AckCooldown)
	// Unset keys keep their defaults.
	assert.True(t, cfg.AutoStart)
	assert.False(t, cfg.IsProduction())

	m := cfg.Detection.Machine()
	assert.Equal(t, 0.2, m.Fatigue.EARThreshold)
	assert.Equal(t, fatigue.SensitiveConfig().MARThreshold, m.Fatigue.MARThreshold)
	assert.Equal(t, 5*time.Second, m.AckCooldown)
	assert.Equal(t, 30, m.FPS)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnvFile(t))
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "port: [not, a, number]")
	_, err = Load(bad, noEnvFile(t))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "drowsy.yaml", "port: 9000\n")
	t.Setenv("DROWSY_PORT", "9100")
	t.Setenv("DROWSY_FPS", "12")
	t.Setenv("DROWSY_AUTO_START", "false")

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 12, cfg.Detection.FPS)
	assert.False(t, cfg.AutoStart)
}

func TestDotEnvFile(t *testing.T) {
	const key = "DROWSY_STORE"
	clearEnv(t)
	os.Unsetenv(key)

	env := writeFile(t, "test.env", key+"=/tmp/drowsy-cal.json\n")
	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/drowsy-cal.json", cfg.Store)
}

func TestFlagsOverrideEverything(t *testing.T) {
	clearEnv(t)
	t.Setenv("DROWSY_PORT", "9100")

	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)

	var f Flags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.Register(fs)
	require.NoError(t, fs.Parse([]string{"-port", "7000", "-preset", "relaxed"}))
	cfg.ApplyFlags(fs, &f)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, PresetRelaxed, cfg.Detection.Preset)
	// Flags left at their defaults do not clobber loaded values.
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 20, cfg.Detection.FPS)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"huge port", func(c *Config) { c.Port = 70000 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad preset", func(c *Config) { c.Detection.Preset = "paranoid" }, true},
		{"warning level", func(c *Config) { c.LogLevel = "WARNING" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMachineClampsFPS(t *testing.T) {
	m := Detection{Preset: PresetStandard, FPS: 1000}.Machine()
	assert.Equal(t, 60, m.FPS)

	m = Detection{Preset: PresetRelaxed, RequireCalibration: true}.Machine()
	assert.Equal(t, fatigue.RelaxedConfig().EARThreshold, m.Fatigue.EARThreshold)
	assert.True(t, m.Fatigue.RequireCalibration)
}

func TestProductionFromFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "drowsy.yaml", "env: production\n")

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())

	t.Setenv("DROWSY_ENV", "staging")
	cfg, err = Load(path, noEnvFile(t))
	require.NoError(t, err)
	assert.False(t, cfg.IsProduction())
}
