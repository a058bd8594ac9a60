package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)

	m.Backups.WithLabelValues("manual", ResultSuccess).Inc()
	m.Throttled.Inc()
	m.BackupBytes.Observe(2048)

	n, err := testutil.GatherAndCount(reg, "bacli_backups_total", "bacli_incremental_throttled_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Backups.WithLabelValues("manual", ResultSuccess)))
}

func TestNew_NilRegistry(t *testing.T) {
	m := New(nil)
	m.Pruned.Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Pruned))
}
