// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/leapstack-labs/leapkpi/internal/testutil"
	"github.com/leapstack-labs/leapkpi/pkg/core"
)

// ProjectConfig is the config file written by SetupTestProject.
const ProjectConfig = `customers: data/customers.csv
orders: data/orders.xml
output_dir: out
state_path: .leapkpi/state.db
timezone: Asia/Kolkata
output: json
target:
  type: sqlite
  database: .leapkpi/store.db
`

// SetupTestProject creates a project directory with sources built from ds and
// a leapkpi.yaml pointing at them. It returns the config file path.
func SetupTestProject(t *testing.T, ds *core.Dataset) string {
	t.Helper()

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("failed to create data directory: %v", err)
	}
	testutil.WriteSources(t, dataDir, ds, testutil.Kolkata(t))

	cfgPath := filepath.Join(dir, "leapkpi.yaml")
	if err := os.WriteFile(cfgPath, []byte(ProjectConfig), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return cfgPath
}

// SetupScenarioProject creates a project holding the two-customer scenario
// relative to now.
func SetupScenarioProject(t *testing.T) string {
	t.Helper()
	return SetupTestProject(t, testutil.ScenarioDataset(time.Now()))
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
