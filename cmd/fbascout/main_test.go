package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/fbascout/internal/model"
	"github.com/guarzo/fbascout/internal/testutil"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := dispatch(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// writeConfig points storage at a temp dir and disables the item delay.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	testutil.ClearConfigEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "fbascout.yaml")
	cfg := "batch:\n  item_delay: 0s\nstorage:\n  dsn: " + filepath.Join(dir, "runs.db") +
		"\n  data_dir: " + filepath.Join(dir, "data") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, dir
}

func TestDispatch_Usage(t *testing.T) {
	code, _, stderr := run(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "commands:")
	assert.Contains(t, stderr, "history")

	code, _, stderr = run(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, _, _ = run(t, "help")
	assert.Equal(t, 0, code)
}

func TestFees_JSON(t *testing.T) {
	code, stdout, _ := run(t, "fees",
		"-price", "49.99", "-cost", "25", "-shipping", "3.5", "-prep", "0.5",
		"-weight", "0.7", "-category", "electronics", "-json")
	require.Equal(t, 0, code)

	var got model.FeeResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, 14.49, got.NetProfit)
	assert.Equal(t, 4.0, got.ReferralFee)
	assert.Equal(t, 50.0, got.ROIPercent)
}

func TestFees_Why(t *testing.T) {
	code, stdout, _ := run(t, "fees", "-price", "20", "-cost", "5",
		"-length", "14", "-width", "8", "-height", "3", "-weight", "1", "-why")
	require.Equal(t, 0, code)

	assert.Contains(t, stdout, "referral 15%")
	assert.Contains(t, stdout, "billable weight: 2.02 lb")
	assert.Contains(t, stdout, "oversize: true")
	assert.Contains(t, stdout, "ROI:40.0", "138% ROI earns the full ROI points")
	assert.Contains(t, stdout, "Net profit")
}

func TestFees_InvalidInput(t *testing.T) {
	code, _, _ := run(t, "fees", "-price", "20", "-units", "0")
	assert.Equal(t, 1, code)

	code, _, _ = run(t, "fees", "-nope")
	assert.Equal(t, 1, code)
}

func TestFees_ProfileFillsUnsetCosts(t *testing.T) {
	in := model.FeeInputs{ProductCost: 7, UnitsPerPack: 1}
	fillFromProfile(&in, model.CostProfile{ProductCost: 10, ShippingCost: 2, UnitsPerPack: 4},
		map[string]bool{"cost": true})

	assert.Equal(t, 7.0, in.ProductCost)
	assert.Equal(t, 2.0, in.ShippingCost)
	assert.Equal(t, 4, in.UnitsPerPack)
}

func TestClassify(t *testing.T) {
	code, stdout, _ := run(t, "classify", "b07xj8c8f5", "883412740951", "nope")
	require.Equal(t, 0, code)

	assert.Contains(t, stdout, "B07XJ8C8F5")
	assert.Contains(t, stdout, "UPC")
	assert.Contains(t, stdout, "Invalid")
}

func TestHistory_FromFeedFile(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	feedPath := filepath.Join(dir, "feed.json")
	require.NoError(t, os.WriteFile(feedPath,
		[]byte(`{"amazon":[6000000,1999,6000060,2099],"sales_rank":[6000000,1500,6000060,1400]}`), 0o644))

	code, stdout, _ := run(t, "history", "-config", cfgPath, "-feed", feedPath, "-json")
	require.Equal(t, 0, code)

	var out historyOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out.Points, 2)
	assert.Equal(t, 20.99, *out.Points[1].AmazonPrice)
	assert.Equal(t, int64(1400), out.Summary.RankNow)
	assert.NotEmpty(t, out.Anomalies)

	code, stdout, _ = run(t, "history", "-config", cfgPath, "-feed", feedPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "points: 2")
}

func TestHistory_RequiresASIN(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	code, _, _ := run(t, "history", "-config", cfgPath)
	assert.Equal(t, 2, code)

	code, _, _ = run(t, "history", "-config", cfgPath, "883412740951")
	assert.Equal(t, 1, code)
}

func TestBatch_ExportsAndSavesRun(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	csvPath := filepath.Join(dir, "out.csv")
	xlsxPath := filepath.Join(dir, "out.xlsx")

	// Without an API key every lookup fails, but the run still completes.
	code, stdout, _ := run(t, "batch", "-config", cfgPath, "-quiet", "-save",
		"-csv", csvPath, "-xlsx", xlsxPath, "B07XJ8C8F5", "883412740951", "bad-id")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "0/3 succeeded")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\r\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[3], "bad-id,"))

	info, err := os.Stat(xlsxPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	code, stdout, _ = run(t, "runs", "-config", cfgPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "0/3 succeeded")
	assert.Contains(t, stdout, "completed")
}

func TestBatch_RejectsEmptyInput(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	code, _, _ := run(t, "batch", "-config", cfgPath, "-quiet")
	assert.Equal(t, 1, code)
}

func TestBatch_ReadsFile(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	list := filepath.Join(dir, "list.txt")
	require.NoError(t, os.WriteFile(list, []byte("# watchlist\nB07XJ8C8F5\n\nnot-an-id\n"), 0o644))

	code, stdout, _ := run(t, "batch", "-config", cfgPath, "-quiet", "-file", list)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "0/2 succeeded")
}

func TestWatch_OnceWritesAlertReport(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	list := filepath.Join(dir, "watchlist.txt")
	require.NoError(t, os.WriteFile(list, []byte("B07XJ8C8F5\n"), 0o644))
	alertsPath := filepath.Join(dir, "alerts.csv")

	code, stdout, _ := run(t, "watch", "-config", cfgPath, "-once", "-file", list, "-alerts-csv", alertsPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "0/1 succeeded")

	data, err := os.ReadFile(alertsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total Alerts,0")

	// The watch run is stored like any other.
	code, stdout, _ = run(t, "runs", "-config", cfgPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "0/1 succeeded")
}

func TestRuns_PruneAndASIN(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	code, _, _ := run(t, "batch", "-config", cfgPath, "-quiet", "-save", "-fresh", "B07XJ8C8F5")
	require.Equal(t, 0, code)

	// Failed lookups record no analytics.
	code, stdout, _ := run(t, "runs", "-config", cfgPath, "-asin", "b07xj8c8f5")
	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, "B07XJ8C8F5")

	code, _, _ = run(t, "runs", "-config", cfgPath, "-asin", "883412740951")
	assert.Equal(t, 1, code)

	code, stdout, _ = run(t, "runs", "-config", cfgPath, "-prune", "1ns")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "pruned 1 runs")

	code, stdout, _ = run(t, "runs", "-config", cfgPath)
	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, "succeeded")
}

func TestUPC_ListsMappings(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "upc_mappings.json"), []byte(`[
  {"upc": "883412740951", "asin": "B07XJ8C8F5", "source": "manual"},
  {"upc": "5012345678900", "asin": "B000000001", "source": "keepa"}
]`), 0o644))

	code, stdout, _ := run(t, "upc", "-config", cfgPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "883412740951")
	assert.Contains(t, stdout, "2 mappings, 2 distinct ASINs")

	code, stdout, _ = run(t, "upc", "-config", cfgPath, "-asin", "b000000001")
	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, "883412740951")
	assert.Contains(t, stdout, "5012345678900")
}
