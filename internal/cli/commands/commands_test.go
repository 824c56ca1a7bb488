package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	clitest "github.com/leapstack-labs/leapkpi/internal/cli/testutil"
	"github.com/leapstack-labs/leapkpi/internal/cli/config"
	"github.com/leapstack-labs/leapkpi/internal/state"
	"github.com/leapstack-labs/leapkpi/internal/testutil"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/leapkpi/pkg/adapters/sqlite"
)

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	for _, flag := range []string{"fresh", "no-state", "no-export"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewKPIsCommand(t *testing.T) {
	cmd := NewKPIsCommand()

	assert.Equal(t, "kpis", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	f := cmd.Flags().Lookup("engine")
	require.NotNil(t, f)
	assert.Equal(t, "relational", f.DefValue)
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history [run-id]", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("limit"))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}

// execute runs cmd against the project config at cfgPath.
func execute(t *testing.T, cfgPath string, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	cfg, _, err := config.Load(cfgPath, nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	ctx := config.WithConfig(context.Background(), cfg)
	ctx = config.WithLogger(ctx, testutil.NewTestLogger(t))

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

type summaryJSON struct {
	AllMatch bool `json:"all_match"`
	KPIs     []struct {
		KPI    string `json:"kpi"`
		Status string `json:"status"`
	} `json:"kpis"`
}

func TestRunCommand(t *testing.T) {
	cfgPath := clitest.SetupScenarioProject(t)
	dir := filepath.Dir(cfgPath)

	out, errOut, err := execute(t, cfgPath, NewRunCommand(), "--fresh")
	require.NoError(t, err)
	clitest.AssertNoANSI(t, out)

	var sum summaryJSON
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.True(t, sum.AllMatch)
	require.Len(t, sum.KPIs, len(core.AllKPIs))
	for _, k := range sum.KPIs {
		assert.Equal(t, "MATCH", k.Status, k.KPI)
	}
	assert.Contains(t, errOut, "report files written")

	files, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, files, 2*len(core.AllKPIs)+1)
	assert.FileExists(t, filepath.Join(dir, ".leapkpi", "state.db"))
}

func TestRunCommand_NoStateNoExport(t *testing.T) {
	cfgPath := clitest.SetupScenarioProject(t)
	dir := filepath.Dir(cfgPath)

	_, _, err := execute(t, cfgPath, NewRunCommand(), "--no-state", "--no-export")
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(dir, "out"))
	assert.NoFileExists(t, filepath.Join(dir, ".leapkpi", "state.db"))
}

func TestRunCommand_MissingSource(t *testing.T) {
	cfgPath := clitest.SetupScenarioProject(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(cfgPath), "data", "orders.xml")))

	_, _, err := execute(t, cfgPath, NewRunCommand(), "--no-state")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestIngestCommand(t *testing.T) {
	cfgPath := clitest.SetupScenarioProject(t)

	type ingestJSON struct {
		Counts struct {
			Customers  int64
			Orders     int64
			OrderItems int64
		}
	}

	for i := range 2 {
		out, _, err := execute(t, cfgPath, NewIngestCommand())
		require.NoError(t, err, "ingest %d", i+1)

		var res ingestJSON
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, int64(2), res.Counts.Customers)
		assert.Equal(t, int64(4), res.Counts.Orders)
		assert.Equal(t, int64(7), res.Counts.OrderItems)
	}
}

func TestKPIsCommand(t *testing.T) {
	cfgPath := clitest.SetupScenarioProject(t)

	t.Run("memory", func(t *testing.T) {
		out, _, err := execute(t, cfgPath, NewKPIsCommand(), "--engine", "memory")
		require.NoError(t, err)
		assert.Contains(t, out, "C1")
		assert.Contains(t, out, "North")
	})

	t.Run("relational after ingest", func(t *testing.T) {
		_, _, err := execute(t, cfgPath, NewIngestCommand())
		require.NoError(t, err)

		out, _, err := execute(t, cfgPath, NewKPIsCommand(), "--engine", "relational")
		require.NoError(t, err)
		assert.Contains(t, out, "C1")
		assert.Contains(t, out, "South")
	})

	t.Run("unknown engine", func(t *testing.T) {
		_, _, err := execute(t, cfgPath, NewKPIsCommand(), "--engine", "spreadsheet")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown engine")
	})
}

func TestValidateCommand(t *testing.T) {
	cfgPath := clitest.SetupScenarioProject(t)

	out, _, err := execute(t, cfgPath, NewValidateCommand())
	require.NoError(t, err)

	var res validateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Stats.Customers)
	assert.Equal(t, 4, res.Stats.Orders)
	assert.Equal(t, 7, res.Stats.OrderItems)
	assert.Equal(t, "725.75", res.Stats.Revenue.StringFixed(2))
	assert.Empty(t, res.Warnings)
}

func TestValidateCommand_Warnings(t *testing.T) {
	now := time.Now()
	ds := core.NewDataset(
		[]core.Customer{{CustomerID: "C1", CustomerName: "Asha", MobileNumber: "12345", Region: "North"}},
		[]core.Order{{OrderID: "O1", MobileNumber: "12345", OrderDateTime: now.Add(-24 * time.Hour), TotalAmount: testutil.Money("10.00")}},
		[]core.OrderItem{{OrderID: "O1", LineNo: 1, SKUID: "SKU-1", SKUCount: 1}},
	)
	cfgPath := clitest.SetupTestProject(t, ds)

	out, errOut, err := execute(t, cfgPath, NewValidateCommand())
	require.NoError(t, err)

	var res validateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, core.WarnInvalidMobileNumber, res.Warnings[0].Code)
	assert.Equal(t, 1, res.Warnings[0].Count)
	assert.Empty(t, errOut)
}

func TestHistoryCommand(t *testing.T) {
	cfgPath := clitest.SetupScenarioProject(t)

	out, _, err := execute(t, cfgPath, NewHistoryCommand())
	require.NoError(t, err)
	assert.JSONEq(t, "null", out)

	for range 2 {
		_, _, err = execute(t, cfgPath, NewRunCommand(), "--no-export")
		require.NoError(t, err)
	}

	out, _, err = execute(t, cfgPath, NewHistoryCommand(), "--limit", "5")
	require.NoError(t, err)
	var runs []state.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, state.RunStatusMatched, r.Status)
		assert.Equal(t, "sqlite", r.Target)
	}

	out, _, err = execute(t, cfgPath, NewHistoryCommand(), runs[0].ID)
	require.NoError(t, err)
	var detail struct {
		Run  state.Run         `json:"run"`
		KPIs []state.KPIResult `json:"kpis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, runs[0].ID, detail.Run.ID)
	assert.Len(t, detail.KPIs, len(core.AllKPIs))

	_, _, err = execute(t, cfgPath, NewHistoryCommand(), "no-such-run")
	assert.ErrorIs(t, err, state.ErrRunNotFound)
}
