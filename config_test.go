package formula_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	formula "github.com/njchilds90/goformula"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formula.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfig_DefaultIsValid(t *testing.T) {
	cfg := formula.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, formula.DefaultMaxPasses, cfg.Engine.MaxPasses)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestConfig_LoadYAML(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_passes: 4
  max_steps: 500
server:
  addr: ":9090"
  read_timeout: 2s
log:
  level: debug
  format: json
`)
	cfg, err := formula.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Engine.MaxPasses)
	assert.Equal(t, 500, cfg.Engine.MaxSteps)
	assert.Equal(t, formula.DefaultPowerPrecision, cfg.Engine.PowerPrecision)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "json", cfg.Log.Format)

	opts := cfg.Options(nil)
	assert.Equal(t, 4, opts.MaxPasses)
	assert.Equal(t, 500, opts.MaxSteps)
}

func TestConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := formula.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, formula.DefaultConfig(), cfg)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FORMULA_ADDR", ":7070")
	t.Setenv("FORMULA_MAX_PASSES", "3")
	t.Setenv("FORMULA_LOG_LEVEL", "WARN")
	cfg, err := formula.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Engine.MaxPasses)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad level", "log:\n  level: verbose\n"},
		{"zero passes", "engine:\n  max_passes: 0\n"},
		{"positive precision", "engine:\n  power_precision: 3\n"},
		{"zero precision", "engine:\n  power_precision: 0\n"},
		{"bad format", "log:\n  format: xml\n"},
		{"malformed yaml", "engine: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := formula.LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := formula.LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
