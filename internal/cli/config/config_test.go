package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapkpi/internal/reconcile"
	"github.com/leapstack-labs/leapkpi/internal/report"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapkpi/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapkpi/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapkpi/pkg/adapters/sqlite"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("customers", "", "")
	fs.String("orders", "", "")
	fs.String("output-dir", "", "")
	fs.String("database", "", "")
	fs.String("target-type", "", "")
	fs.String("state", "", "")
	fs.String("timezone", "", "")
	fs.Int("top-n", 0, "")
	fs.Int("window-days", 0, "")
	fs.String("mode", "", "")
	fs.String("format", "", "")
	fs.String("env", "", "")
	fs.BoolP("verbose", "v", false, "")
	return fs
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, used)

	assert.Equal(t, "Asia/Kolkata", cfg.Timezone)
	assert.Equal(t, 10, cfg.TopN)
	assert.Equal(t, 30, cfg.WindowDays)
	assert.Equal(t, "content", cfg.Mode)
	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.True(t, filepath.IsAbs(cfg.CustomersPath))
	assert.Equal(t, "customers.csv", filepath.Base(cfg.CustomersPath))
	assert.Equal(t, "store.db", filepath.Base(cfg.Target.Database))
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapkpi.yaml"), []byte(`
customers: in/c.csv
top_n: 3
mode: rowcount
timezone: UTC
target:
  type: duckdb
  database: ":memory:"
  params:
    threads: 2
`), 0o600))

	t.Setenv("LEAPKPI_TOP_N", "5")
	t.Setenv("LEAPKPI_TARGET__SCHEMA", "kpi")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--mode", "content", "--window-days", "7"}))

	cfg, used, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "leapkpi.yaml"), used)

	assert.Equal(t, filepath.Join(dir, "in", "c.csv"), cfg.CustomersPath)
	assert.Equal(t, 5, cfg.TopN, "env overrides file")
	assert.Equal(t, "content", cfg.Mode, "flag overrides file")
	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, ":memory:", cfg.Target.Database)
	assert.Equal(t, "kpi", cfg.Target.Schema)
	assert.EqualValues(t, 2, cfg.Target.Params["threads"])
}

func TestLoad_FlagPaths(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{
		"--customers", "x/c.csv",
		"--database", "db/kpi.db",
		"--state", "state.db",
		"--target-type", "sqlite",
	}))

	cfg, _, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x", "c.csv"), cfg.CustomersPath)
	assert.Equal(t, filepath.Join(dir, "db", "kpi.db"), cfg.Target.Database)
	assert.Equal(t, filepath.Join(dir, "state.db"), cfg.StatePath)
}

func TestLoad_Environments(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("PG_PASSWORD", "s3cret")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapkpi.yaml"), []byte(`
target:
  type: sqlite
environments:
  prod:
    output_dir: /srv/reports
    target:
      type: postgres
      host: db.internal
      password: ${PG_PASSWORD}
`), 0o600))

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--env", "prod"}))

	cfg, _, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "db.internal", cfg.Target.Host)
	assert.Equal(t, 5432, cfg.Target.Port)
	assert.Equal(t, "public", cfg.Target.Schema)
	assert.Equal(t, "s3cret", cfg.Target.Password)
	assert.Equal(t, "/srv/reports", cfg.OutputDir)

	flags = newFlags()
	require.NoError(t, flags.Parse([]string{"--env", "staging"}))
	_, _, err = Load("", flags)
	assert.ErrorContains(t, err, "unknown environment")
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	chdir(t, t.TempDir())
	_, _, err := Load("nope.yaml", nil)
	assert.ErrorContains(t, err, "nope.yaml")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Target:       &TargetConfig{Type: "sqlite"},
			Timezone:     "Asia/Kolkata",
			TopN:         10,
			WindowDays:   30,
			Mode:         "content",
			Tolerance:    "0.01",
			Format:       "csv",
			QueryTimeout: "30s",
			LogLevel:     "info",
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty type", mutate: func(c *Config) { c.Target.Type = "" }, errSubstr: "target type is required"},
		{name: "unknown type", mutate: func(c *Config) { c.Target.Type = "oracle" }, errSubstr: "unknown adapter type"},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, errSubstr: "invalid timezone"},
		{name: "zero top n", mutate: func(c *Config) { c.TopN = 0 }, errSubstr: "top_n"},
		{name: "zero window", mutate: func(c *Config) { c.WindowDays = 0 }, errSubstr: "window_days"},
		{name: "bad mode", mutate: func(c *Config) { c.Mode = "fuzzy" }, errSubstr: "unknown reconcile mode"},
		{name: "negative tolerance", mutate: func(c *Config) { c.Tolerance = "-1" }, errSubstr: "tolerance"},
		{name: "bad tolerance", mutate: func(c *Config) { c.Tolerance = "cents" }, errSubstr: "tolerance"},
		{name: "bad format", mutate: func(c *Config) { c.Format = "pdf" }, errSubstr: "report format"},
		{name: "bad timeout", mutate: func(c *Config) { c.QueryTimeout = "soon" }, errSubstr: "query_timeout"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "chatty" }, errSubstr: "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_PipelineConfig(t *testing.T) {
	c := &Config{
		CustomersPath: "c.csv",
		OrdersPath:    "o.xml",
		OutputDir:     "out",
		Format:        "md",
		Target:        &TargetConfig{Type: "sqlite", Database: ":memory:"},
		Timezone:      "Asia/Kolkata",
		TopN:          5,
		WindowDays:    7,
		Mode:          "rowcount",
		Tolerance:     "0.05",
		QueryTimeout:  "5s",
	}
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	pc, err := c.PipelineConfig(now)
	require.NoError(t, err)
	assert.Equal(t, report.FormatMarkdown, pc.Format)
	assert.Equal(t, reconcile.ModeRowCount, pc.Compare.Mode)
	assert.Equal(t, "0.05", pc.Compare.Tolerance.String())
	assert.Equal(t, 5*time.Second, pc.QueryTimeout)
	assert.Equal(t, 7*24*time.Hour, pc.Params.Window)
	assert.Equal(t, 5, pc.Params.TopN)
	assert.Equal(t, "Asia/Kolkata", pc.Params.Location.String())
	assert.Equal(t, now, pc.Params.Now)
	assert.Equal(t, "sqlite", pc.Target.Type)
}

func TestMergeTargetConfig(t *testing.T) {
	base := &TargetConfig{Type: "postgres", Host: "localhost", Port: 5432, Options: map[string]string{"sslmode": "disable"}}
	override := &TargetConfig{Host: "prod", Options: map[string]string{"sslmode": "require"}, Params: map[string]any{"x": 1}}

	merged := MergeTargetConfig(base, override)
	assert.Equal(t, "postgres", merged.Type)
	assert.Equal(t, "prod", merged.Host)
	assert.Equal(t, 5432, merged.Port)
	assert.Equal(t, "require", merged.Options["sslmode"])
	assert.Equal(t, "disable", base.Options["sslmode"], "base must not be modified")
	assert.Equal(t, 1, merged.Params["x"])

	assert.Same(t, base, MergeTargetConfig(base, nil))
	assert.Same(t, override, MergeTargetConfig(nil, override))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.NotNil(t, GetLogger(ctx))

	cfg := &Config{TopN: 3}
	got, ok := FromContext(WithConfig(ctx, cfg))
	require.True(t, ok)
	assert.Same(t, cfg, got)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LEAPKPI_TEST_USER", "alice")
	assert.Equal(t, "alice@host", expandEnvVars("${LEAPKPI_TEST_USER}@host"))
	assert.Equal(t, "${LEAPKPI_UNSET_VAR}", expandEnvVars("${LEAPKPI_UNSET_VAR}"))
}
