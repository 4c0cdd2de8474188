package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/boardflow/core"
)

func TestLoadSnapshot(t *testing.T) {
	doc := []byte(`
period_start: "2025-01-01"
period_end: "2025-03-31"
net_revenue: 500000
gross_profit: 90000
inventory_days: 48
data_health_score: 92
margin_trend: DOWN
`)
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, doc, 0o644))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)

	assert.InDelta(t, 500000, snap.NetRevenue, 0.001)
	assert.InDelta(t, 18.0, snap.GrossMarginPct(), 0.001)
	assert.Equal(t, core.TrendDown, snap.MarginTrend)
	// Unspecified trends default to FLAT.
	assert.Equal(t, core.TrendFlat, snap.RevenueTrend)
	assert.Equal(t, core.TrendFlat, snap.BasketTrend)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGrossMarginPctZeroRevenue(t *testing.T) {
	snap := &Snapshot{GrossProfit: 100}
	assert.Zero(t, snap.GrossMarginPct())
}
