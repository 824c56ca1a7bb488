// Package config loads the leapkpi command-line configuration.
package config

import (
	"github.com/leapstack-labs/leapkpi/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// Default configuration values.
const (
	DefaultCustomersPath = "data/customers.csv"
	DefaultOrdersPath    = "data/orders.xml"
	DefaultOutputDir     = "output"
	DefaultStateFile     = ".leapkpi/state.db"
	DefaultFormat        = "csv"
	DefaultMode          = "content"
	DefaultTolerance     = "0.01"
	DefaultQueryTimeout  = "30s"
	DefaultWindowDays    = 30
	DefaultLogLevel      = "info"
	DefaultOutput        = "auto" // TTY=text, otherwise markdown
)

// Config holds all CLI configuration options.
type Config struct {
	CustomersPath string `koanf:"customers"`
	OrdersPath    string `koanf:"orders"`
	OutputDir     string `koanf:"output_dir"`
	Format        string `koanf:"format"`
	StatePath     string `koanf:"state_path"`

	Timezone     string `koanf:"timezone"`
	TopN         int    `koanf:"top_n"`
	WindowDays   int    `koanf:"window_days"`
	Mode         string `koanf:"mode"`
	Tolerance    string `koanf:"tolerance"`
	QueryTimeout string `koanf:"query_timeout"`

	LogLevel     string `koanf:"log_level"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Target       *TargetConfig        `koanf:"target"`
	Environment  string               `koanf:"environment"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	OutputDir string        `koanf:"output_dir"`
	Target    *TargetConfig `koanf:"target"`
}
